package binding

import (
	"encoding/json"
	"testing"

	"github.com/tesselcraft/tessera/internal/models"
)

type fakeSource map[string]json.RawMessage

func (f fakeSource) Latest(channelKey string) (json.RawMessage, bool) {
	p, ok := f[channelKey]
	return p, ok
}

func payload(s string) json.RawMessage { return json.RawMessage(s) }

func TestMerge_OwnAliasesBind(t *testing.T) {
	schema := &models.SchemaProject{
		Type:        models.TypeDynamic,
		ChannelKeys: []string{"ticker.BTC-USD"},
		ChannelAliases: []models.ChannelBinding{
			{ChannelKey: "ticker.BTC-USD", Alias: "btc"},
		},
	}
	live := fakeSource{"ticker.BTC-USD": payload(`{"raw":{"last":42}}`)}

	rctx := Merge(schema, nil, live)
	if string(rctx["btc"]) != `{"raw":{"last":42}}` {
		t.Errorf("btc = %s", rctx["btc"])
	}
}

func TestMerge_RootAliasWinsCollision(t *testing.T) {
	schema := &models.SchemaProject{
		Type:        models.TypeDynamic,
		ChannelKeys: []string{"ch.X"},
		ChannelAliases: []models.ChannelBinding{
			{ChannelKey: "ch.X", Alias: "a"},
		},
	}
	required := []models.ChannelBinding{{ChannelKey: "ch.Y", Alias: "a"}}
	live := fakeSource{
		"ch.X": payload(`{"raw":"from-x"}`),
		"ch.Y": payload(`{"raw":"from-y"}`),
	}

	rctx := Merge(schema, required, live)
	if string(rctx["a"]) != `{"raw":"from-x"}` {
		t.Errorf("a = %s, root's own binding must win", rctx["a"])
	}
}

func TestMerge_SelfDefaultsToFirstChannel(t *testing.T) {
	schema := &models.SchemaProject{
		Type:        models.TypeDynamic,
		ChannelKeys: []string{"c1", "c2"},
	}
	live := fakeSource{
		"c1": payload(`{"raw":"first"}`),
		"c2": payload(`{"raw":"second"}`),
	}

	rctx := Merge(schema, nil, live)
	if string(rctx[models.SelfAlias]) != `{"raw":"first"}` {
		t.Errorf("self = %s, want c1's payload", rctx[models.SelfAlias])
	}
}

func TestMerge_ExplicitSelfChannel(t *testing.T) {
	schema := &models.SchemaProject{
		Type:           models.TypeDynamic,
		ChannelKeys:    []string{"c1", "c2"},
		SelfChannelKey: "c2",
	}
	live := fakeSource{
		"c1": payload(`{"raw":"first"}`),
		"c2": payload(`{"raw":"second"}`),
	}

	rctx := Merge(schema, nil, live)
	if string(rctx[models.SelfAlias]) != `{"raw":"second"}` {
		t.Errorf("self = %s, want the designated channel", rctx[models.SelfAlias])
	}
}

func TestMerge_PayloadWithoutRawExcluded(t *testing.T) {
	schema := &models.SchemaProject{
		Type:        models.TypeDynamic,
		ChannelKeys: []string{"c1"},
		ChannelAliases: []models.ChannelBinding{
			{ChannelKey: "c1", Alias: "a"},
		},
	}
	live := fakeSource{"c1": payload(`{"status":"connecting"}`)}

	rctx := Merge(schema, nil, live)
	if _, ok := rctx["a"]; ok {
		t.Error("payload without raw field must not bind")
	}
	if _, ok := rctx[models.SelfAlias]; ok {
		t.Error("self must not bind an ineligible payload")
	}
}

func TestMerge_UnpopulatedChannelExcluded(t *testing.T) {
	schema := &models.SchemaProject{
		Type:        models.TypeDynamic,
		ChannelKeys: []string{"c1"},
		ChannelAliases: []models.ChannelBinding{
			{ChannelKey: "c1", Alias: "a"},
		},
	}

	rctx := Merge(schema, nil, fakeSource{})
	if len(rctx) != 0 {
		t.Errorf("context = %v, want empty", rctx)
	}
}

func TestMerge_RequiredFillsUnboundAliases(t *testing.T) {
	required := []models.ChannelBinding{
		{ChannelKey: "ch1", Alias: "x"},
		{ChannelKey: "ch2", Alias: "y"},
	}
	live := fakeSource{
		"ch1": payload(`{"raw":1}`),
		"ch2": payload(`{"raw":2}`),
	}

	rctx := Merge(nil, required, live)
	if string(rctx["x"]) != `{"raw":1}` || string(rctx["y"]) != `{"raw":2}` {
		t.Errorf("context = %v", rctx)
	}
}
