package mcpserver

// SchemaFormatContract describes the canonical schema document format that
// LLM consumers should follow when creating or updating schemas.
const SchemaFormatContract = `# Tessera Schema Document Contract

Every schema document stored in Tessera MUST follow this JSON structure.

## Structure

` + "```" + `jsonc
{
  "id": "a2f1…",                    // server-assigned; omit on create
  "name": "Spot Price Panel",       // REQUIRED – human-readable display name
  "description": "BTC spot price",  // optional
  "type": "dynamic",                // "static" (container) or "dynamic" (data-bound)
  "widgetKey": "widget.spot_price", // stable reference key; derived from name when omitted
  "channelKeys": ["ticker.BTC-USD"],        // dynamic only: live channels the widget consumes
  "channelAliases": [                       // alias table for interpolation expressions
    { "channelKey": "ticker.BTC-USD", "alias": "spot" }
  ],
  "selfChannelKey": "ticker.BTC-USD",       // optional; defaults to the first channel key
  "nestedSchemas": ["widget.legend"],       // static only: widget keys this schema embeds
  "schema": { ... },                        // the UI tree (see below)
  "createdAt": 1737000000000,               // server-assigned, epoch milliseconds
  "updatedAt": 1737000000000                // server-assigned
}
` + "```" + `

The ` + "`" + `schema` + "`" + ` field holds the widget UI tree: nested JSON objects where
` + "`" + `type` + "`" + `, ` + "`" + `schemaRef` + "`" + `, and ` + "`" + `children` + "`" + ` are structural and every other
field passes through to the renderer untouched.

` + "```" + `jsonc
{
  "type": "panel",                  // renderer component name
  "text": "${spot.raw.data.last}",  // display text; may interpolate
  "children": [                     // child nodes, resolved in order
    { "type": "slot", "schemaRef": "widget.legend" }
  ]
}
` + "```" + `

## Rules

1. **` + "`" + `name` + "`" + ` is required.** Everything else has a server-side default.
2. **Widget keys** are lowercase with ` + "`" + `.` + "`" + ` and ` + "`" + `_` + "`" + ` separators
   (e.g. ` + "`" + `widget.order_book` + "`" + `). They are unique across the store; an
   upsert with an existing key replaces that document.
3. **Static schemas** compose: they embed other schemas via ` + "`" + `schemaRef` + "`" + `
   nodes and bind no channels. ` + "`" + `nestedSchemas` + "`" + ` is unioned with the
   references found in the tree automatically.
4. **Dynamic schemas** bind channels and embed nothing: ` + "`" + `nestedSchemas` + "`" + `
   is cleared on save. List every consumed channel in ` + "`" + `channelKeys` + "`" + `.
5. **Aliases** are lowercase ` + "`" + `[a-z0-9_]` + "`" + ` names; anything else is
   sanitized on save. One alias per channel key, one channel key per alias.
6. **Interpolation** uses ` + "`" + `${alias.path}` + "`" + ` inside string fields: the
   first segment names a channel alias (or ` + "`" + `self` + "`" + `), the rest is a
   GJSON path into that channel's latest payload. Unresolvable expressions
   render verbatim.
7. **References** never fail hard. A ` + "`" + `schemaRef` + "`" + ` to a missing key, a
   reference cycle, or nesting past depth 10 resolves to a placeholder node
   instead of an error.

## Example

A static dashboard embedding one dynamic widget:

` + "```" + `json
{
  "name": "Overview Board",
  "type": "static",
  "widgetKey": "widget.overview",
  "schema": {
    "type": "grid",
    "children": [
      { "type": "cell", "schemaRef": "widget.spot_price" }
    ]
  }
}
` + "```" + `

` + "```" + `json
{
  "name": "Spot Price",
  "type": "dynamic",
  "widgetKey": "widget.spot_price",
  "channelKeys": ["ticker.BTC-USD"],
  "channelAliases": [
    { "channelKey": "ticker.BTC-USD", "alias": "spot" }
  ],
  "schema": {
    "type": "stat",
    "text": "BTC ${spot.raw.data.last}"
  }
}
` + "```" + `
`
