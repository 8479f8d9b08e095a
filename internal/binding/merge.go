// Package binding assembles the render context for a composed tree: one flat
// alias-to-payload map merged from the root schema's own channel selections
// and the channels its nested schemas require, then interpolates payload
// fields into the tree's text expressions.
package binding

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/tesselcraft/tessera/internal/models"
)

// Source exposes the latest payload seen on a live data channel. Channels
// populate asynchronously, so a key may have no payload yet.
type Source interface {
	Latest(channelKey string) (json.RawMessage, bool)
}

// Merge builds the flat render context.
//
// Precedence is fixed: the root schema's own aliased channels bind first and
// are never overwritten; the designated self channel then claims the "self"
// entry; nested requirements fill in only aliases still unbound. A payload
// missing a top-level "raw" field is treated as not yet populated and is
// skipped silently rather than bound or reported.
//
// schema may be nil when an anonymous tree is being previewed; only the
// nested requirements bind in that case.
func Merge(schema *models.SchemaProject, required []models.ChannelBinding, live Source) models.RenderContext {
	rctx := make(models.RenderContext)

	if schema != nil {
		for _, ck := range schema.ChannelKeys {
			alias, ok := schema.AliasFor(ck)
			if !ok {
				continue
			}
			if payload, ok := eligible(live, ck); ok {
				rctx[alias] = payload
			}
		}
		if self := schema.SelfChannel(); self != "" {
			if payload, ok := eligible(live, self); ok {
				rctx[models.SelfAlias] = payload
			}
		}
	}

	for _, req := range required {
		if _, taken := rctx[req.Alias]; taken {
			continue
		}
		if payload, ok := eligible(live, req.ChannelKey); ok {
			rctx[req.Alias] = payload
		}
	}

	return rctx
}

// eligible fetches the latest payload and checks it carries a top-level
// "raw" field, the marker that the channel has emitted real data.
func eligible(live Source, channelKey string) (json.RawMessage, bool) {
	payload, ok := live.Latest(channelKey)
	if !ok || len(payload) == 0 {
		return nil, false
	}
	if !gjson.GetBytes(payload, "raw").Exists() {
		return nil, false
	}
	return payload, true
}
