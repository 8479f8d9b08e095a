package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/tesselcraft/tessera/internal/apperr"
	"github.com/tesselcraft/tessera/internal/models"
	"github.com/tesselcraft/tessera/internal/tree"
)

type memStore struct {
	byID map[string]*models.SchemaProject
	puts int
}

func newMemStore() *memStore {
	return &memStore{byID: make(map[string]*models.SchemaProject)}
}

func (m *memStore) GetByWidgetKey(_ context.Context, key string) (*models.SchemaProject, error) {
	for _, s := range m.byID {
		if s.WidgetKey == key {
			return s, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memStore) Put(_ context.Context, s *models.SchemaProject) error {
	cp := *s
	m.byID[s.ID] = &cp
	m.puts++
	return nil
}

func (m *memStore) byWidgetKey(t *testing.T, key string) *models.SchemaProject {
	t.Helper()
	s, err := m.GetByWidgetKey(context.Background(), key)
	if err != nil {
		t.Fatalf("schema %q not in store", key)
	}
	return s
}

func docJSON(t *testing.T, s *models.SchemaProject) []byte {
	t.Helper()
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func sampleDoc(widgetKey string) *models.SchemaProject {
	node, _ := tree.Decode([]byte(`{"type":"span","text":"${self.raw.last}"}`))
	return &models.SchemaProject{
		ID:          "exported-id",
		Name:        "Sample " + widgetKey,
		Type:        models.TypeDynamic,
		WidgetKey:   widgetKey,
		ChannelKeys: []string{"ch1"},
		ChannelAliases: []models.ChannelBinding{
			{ChannelKey: "ch1", Alias: "x"},
		},
		SelfChannelKey: "ch1",
		Schema:         node,
		CreatedAt:      1700000000000,
		UpdatedAt:      1700000000000,
	}
}

func TestParse_SingleSchema(t *testing.T) {
	docs, main, err := Parse(docJSON(t, sampleDoc("widget.a")))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(docs) != 1 || docs[0].WidgetKey != "widget.a" || main != "" {
		t.Errorf("docs = %d, main = %q", len(docs), main)
	}
}

func TestParse_Bundle(t *testing.T) {
	b := Bundle{
		Version:    Version,
		ExportedAt: "2026-01-02T03:04:05Z",
		MainSchema: "widget.a",
		Schemas:    []*models.SchemaProject{sampleDoc("widget.a"), sampleDoc("widget.b")},
	}
	raw, _ := json.Marshal(b)

	docs, main, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(docs) != 2 || main != "widget.a" {
		t.Errorf("docs = %d, main = %q", len(docs), main)
	}
}

func TestParse_RejectsUnsupportedVersion(t *testing.T) {
	_, _, err := Parse([]byte(`{"version":"9.9","schemas":[]}`))
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestParse_RejectsNonObject(t *testing.T) {
	for _, raw := range []string{`[1]`, `"s"`, ``} {
		if _, _, err := Parse([]byte(raw)); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("Parse(%q) err = %v, want ErrInvalid", raw, err)
		}
	}
}

func TestImport_MintsFreshID(t *testing.T) {
	st := newMemStore()
	doc := sampleDoc("widget.new")

	res, err := Import(context.Background(), st, docJSON(t, doc))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Created) != 1 || res.Created[0] != "widget.new" || len(res.Updated) != 0 {
		t.Errorf("result = %+v", res)
	}

	got := st.byWidgetKey(t, "widget.new")
	if got.ID == "" || got.ID == "exported-id" {
		t.Errorf("id = %q, want freshly minted", got.ID)
	}
	if got.WidgetKey != "widget.new" {
		t.Errorf("widgetKey = %q, must be preserved", got.WidgetKey)
	}
	if got.CreatedAt == 1700000000000 || got.UpdatedAt == 1700000000000 {
		t.Error("timestamps must be refreshed for a new document")
	}
}

func TestImport_CollisionKeepsIDAndCreatedAt(t *testing.T) {
	st := newMemStore()
	existing := sampleDoc("widget.same")
	existing.ID = "keep-me"
	existing.Name = "Old Name"
	existing.CreatedAt = 111
	_ = st.Put(context.Background(), existing)

	incoming := sampleDoc("widget.same")
	incoming.ID = "other-id"
	incoming.Name = "New Name"

	res, err := Import(context.Background(), st, docJSON(t, incoming))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Updated) != 1 || res.Updated[0] != "widget.same" {
		t.Errorf("result = %+v", res)
	}

	got := st.byWidgetKey(t, "widget.same")
	if got.ID != "keep-me" {
		t.Errorf("id = %q, collision must preserve the existing id", got.ID)
	}
	if got.CreatedAt != 111 {
		t.Errorf("createdAt = %d, must be preserved", got.CreatedAt)
	}
	if got.Name != "New Name" {
		t.Errorf("name = %q, content must be replaced", got.Name)
	}
	if got.UpdatedAt == incoming.UpdatedAt || got.UpdatedAt == 111 {
		t.Error("updatedAt must be refreshed")
	}
}

func TestImport_ValidationRejectsWholeBatch(t *testing.T) {
	st := newMemStore()
	good := sampleDoc("widget.good")
	bad := sampleDoc("widget.bad")
	bad.Name = ""
	b := Bundle{Version: Version, Schemas: []*models.SchemaProject{good, bad}}
	raw, _ := json.Marshal(b)

	_, err := Import(context.Background(), st, raw)
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	if st.puts != 0 {
		t.Errorf("store written %d times before rejection", st.puts)
	}
}

func TestImport_MissingTreeRejected(t *testing.T) {
	st := newMemStore()
	_, err := Import(context.Background(), st,
		[]byte(`{"id":"x","name":"No Tree","type":"static","widgetKey":"widget.x"}`))
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestImport_NormalizesDocuments(t *testing.T) {
	st := newMemStore()

	dyn := sampleDoc("widget.dyn")
	dyn.NestedSchemas = []string{"widget.stale"}
	if _, err := Import(context.Background(), st, docJSON(t, dyn)); err != nil {
		t.Fatalf("Import dynamic: %v", err)
	}
	if got := st.byWidgetKey(t, "widget.dyn"); len(got.NestedSchemas) != 0 {
		t.Errorf("dynamic nestedSchemas = %v, want dropped", got.NestedSchemas)
	}

	static := sampleDoc("widget.static")
	static.Type = models.TypeStatic
	static.NestedSchemas = []string{"widget.declared"}
	static.Schema, _ = tree.Decode([]byte(`{"type":"div","schemaRef":"widget.detected"}`))
	if _, err := Import(context.Background(), st, docJSON(t, static)); err != nil {
		t.Fatalf("Import static: %v", err)
	}
	got := st.byWidgetKey(t, "widget.static")
	want := []string{"widget.declared", "widget.detected"}
	if !reflect.DeepEqual(got.NestedSchemas, want) {
		t.Errorf("nestedSchemas = %v, want %v", got.NestedSchemas, want)
	}
}
