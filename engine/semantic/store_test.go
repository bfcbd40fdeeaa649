package semantic

import (
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
)

func TestToPayload(t *testing.T) {
	payload := toPayload(map[string]any{
		"entry_id": "1.15",
		"position": 3,
		"score":    0.91,
		"flagged":  true,
	})

	if got := payload["entry_id"].GetStringValue(); got != "1.15" {
		t.Errorf("entry_id = %q", got)
	}
	if got := payload["position"].GetIntegerValue(); got != 3 {
		t.Errorf("position = %d", got)
	}
	if got := payload["score"].GetDoubleValue(); got != 0.91 {
		t.Errorf("score = %f", got)
	}
	if got := payload["flagged"].GetBoolValue(); !got {
		t.Error("flagged should be true")
	}
}

func TestToPayload_FallbackString(t *testing.T) {
	payload := toPayload(map[string]any{"weird": []int{1, 2}})
	if got := payload["weird"].GetStringValue(); got == "" {
		t.Error("unsupported types should stringify")
	}
}

func TestFromScoredPoint(t *testing.T) {
	p := &pb.ScoredPoint{
		Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "abc"}},
		Score: 0.87,
		Payload: map[string]*pb.Value{
			"entry_id":   {Kind: &pb.Value_StringValue{StringValue: "1.15"}},
			"doc_type":   {Kind: &pb.Value_StringValue{StringValue: DocTypeEntry}},
			"title":      {Kind: &pb.Value_StringValue{StringValue: "Disorders of the skeletal spine"}},
			"category":   {Kind: &pb.Value_StringValue{StringValue: "Musculoskeletal"}},
			"content":    {Kind: &pb.Value_StringValue{StringValue: "nerve root compromise"}},
			"source_url": {Kind: &pb.Value_StringValue{StringValue: "https://example.test/1.15"}},
			"position":   {Kind: &pb.Value_IntegerValue{IntegerValue: 7}},
		},
	}

	sr := fromScoredPoint(p)
	if sr.ID != "abc" || sr.Score != 0.87 {
		t.Errorf("unexpected id/score: %+v", sr)
	}
	if sr.EntryID != "1.15" || sr.DocType != DocTypeEntry {
		t.Errorf("unexpected entry/doc_type: %+v", sr)
	}
	if sr.Position != 7 {
		t.Errorf("unexpected position: %d", sr.Position)
	}
	if sr.Category != "Musculoskeletal" {
		t.Errorf("unexpected category: %s", sr.Category)
	}
}
