package mcpserver

// CanvasFormatContract describes canvas documents and the rules the store
// enforces, for LLM consumers creating cards and connections.
const CanvasFormatContract = `# Tessera Canvas Contract

A canvas is a freeform 2D board of cards joined by typed connections. Each
canvas is stored as one JSON document.

## Document

` + "```" + `json
{
  "id": "…",
  "name": "Roadmap",
  "description": "",
  "cards": [
    {"id": "…", "type": "note", "title": "Idea", "content": "Body",
     "x": 100, "y": 200, "width": 240, "height": 180, "color": "blue"}
  ],
  "connections": [
    {"id": "…", "fromId": "…", "toId": "…", "type": "directional", "label": "leads to"}
  ],
  "viewport": {"x": 0, "y": 0, "zoom": 1}
}
` + "```" + `

## Rules

1. **Ids are assigned by the store.** Never invent card or connection ids; use the
   ids returned by create_card and read_canvas.
2. **Card types:** ` + "`note`" + ` (default), ` + "`task`" + `, ` + "`link`" + `, ` + "`image`" + `.
3. **Size:** width is at least 150 and height at least 100; smaller values are raised.
   Omitted sizes default to 240 x 180.
4. **Coordinates** are canvas units, x to the right and y downwards. Lay cards out on
   a 20-unit grid and leave gaps so they do not overlap.
5. **Colours** come from the palette: gray, red, orange, yellow, green, blue, purple,
   pink. Leave empty for the default.
6. **Connections** join two different cards of the same canvas. Only one connection may
   exist per unordered pair: A→B and B→A are the same pair. Types are
   ` + "`simple`" + ` (default), ` + "`directional`" + ` (arrow at the target) and
   ` + "`bidirectional`" + ` (arrows at both ends).
7. **Deleting a card** deletes every connection touching it.
8. **Content** uses a Markdown subset: # headings, **bold**, *italic*, ` + "`code`" + `,
   "- " bullets, #tags and [[wikilinks]] (indexed for search).

## Images

- Use the ` + "`attach_image`" + ` tool with an http/https URL or a base64 data URI.
- The image is stored under ` + "`/attachments/`" + ` and an image card pointing at it
  is created in one step.
- Supported formats: png, jpg, jpeg, gif, webp, svg.
`
