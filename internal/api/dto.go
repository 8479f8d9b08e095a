package api

import (
	"github.com/tesselcraft/tessera/internal/bundle"
	"github.com/tesselcraft/tessera/internal/composer"
	"github.com/tesselcraft/tessera/internal/feed"
	"github.com/tesselcraft/tessera/internal/models"
	"github.com/tesselcraft/tessera/internal/store"
	"github.com/tesselcraft/tessera/internal/tree"
)

// SchemaRequest is the request body for creating or replacing a schema.
// The tree is validated structurally while decoding; unknown node fields are
// preserved as props.
type SchemaRequest struct {
	Name           string                  `json:"name" example:"BTC Overview" validate:"required"`
	Description    string                  `json:"description,omitempty" example:"Main BTC dashboard tile"`
	Type           string                  `json:"type" example:"static" enums:"static,dynamic"`
	WidgetKey      string                  `json:"widgetKey,omitempty" example:"widget.btc_overview"`
	ChannelKeys    []string                `json:"channelKeys,omitempty" example:"ticker.BTC-USD"`
	ChannelAliases []models.ChannelBinding `json:"channelAliases,omitempty"`
	SelfChannelKey string                  `json:"selfChannelKey,omitempty" example:"ticker.BTC-USD"`
	NestedSchemas  []string                `json:"nestedSchemas,omitempty"`
	Schema         *tree.Node              `json:"schema,omitempty"`
}

// toModel builds the domain document the service normalizes and stores.
func (r *SchemaRequest) toModel() *models.SchemaProject {
	return &models.SchemaProject{
		Name:           r.Name,
		Description:    r.Description,
		Type:           models.SchemaType(r.Type),
		WidgetKey:      r.WidgetKey,
		ChannelKeys:    r.ChannelKeys,
		ChannelAliases: r.ChannelAliases,
		SelfChannelKey: r.SelfChannelKey,
		NestedSchemas:  r.NestedSchemas,
		Schema:         r.Schema,
	}
}

// SchemaResponse is the full schema document (aliased from the domain layer).
type SchemaResponse = models.SchemaProject

// SchemaListResponse wraps paginated schema listings.
type SchemaListResponse struct {
	Schemas []*models.SchemaProject `json:"schemas" validate:"required"`
	Total   int                     `json:"total" example:"42" validate:"required"`
}

// ResolvedResponse is a composition session snapshot (aliased from the
// composer).
type ResolvedResponse = composer.Snapshot

// RequiredChannelsResponse wraps the channels a composed tree needs.
type RequiredChannelsResponse struct {
	Channels []models.ChannelBinding `json:"channels" validate:"required"`
}

// ChannelListResponse wraps the live channels the hub has seen.
type ChannelListResponse struct {
	Channels []feed.ChannelInfo `json:"channels" validate:"required"`
}

// SearchResponse wraps schema search hits.
type SearchResponse struct {
	Results []store.SearchResult `json:"results" validate:"required"`
}

// ImportResponse reports what an import created and updated (aliased from the
// bundle layer).
type ImportResponse = bundle.Result
