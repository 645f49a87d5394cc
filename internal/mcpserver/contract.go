package mcpserver

// ManifestFormatContract describes the presentation.json document that LLM
// consumers edit through patch_manifest.
const ManifestFormatContract = `# deckhand Manifest Format

Each presentation is a folder of standalone HTML slides. An optional
` + "`presentation.json`" + ` next to them declares order, grouping and tabs.
Nothing in the manifest is required: files on disk are always the source of
truth, and references to files, groups or tabs that do not exist are dropped
when the presentation is read.

## Structure

` + "```" + `json
{
  "meta":   { "name": "Quarterly review" },
  "groups": {
    "research": { "label": "Research", "order": 1, "tabId": "mary" },
    "common":   { "label": "Common",   "order": 0 }
  },
  "tabs": [
    { "id": "mary", "label": "Mary", "subtitle": "Design", "file": "tab-mary.html", "order": 0 }
  ],
  "slides": [
    "index.html",
    { "file": "intro.html", "title": "Intro", "group": "common" },
    { "file": "findings.html", "group": "research", "tags": ["q3"], "recommended": true }
  ]
}
` + "```" + `

## Rules

1. **slides** is the display order. A bare string is the same as ` + "`{\"file\": ...}`" + `.
   Slides on disk but not listed are appended by creation time.
2. **File names** are plain names inside the folder (no slashes) and each may
   appear once.
3. **Group and tab ids** use letters, digits, ` + "`-`" + ` and ` + "`_`" + `.
   Every group and tab needs a non-empty label and an integer order.
4. **tabId** scopes a group to a tab. Groups without one are shared and show
   under every tab. Slides without a group are always visible.
5. **Tab entry documents** must be ` + "`.html`" + ` files. ` + "`tab-<id>.html`" + `
   files are found without being declared.
6. The primary entry is ` + "`index.html`" + ` (legacy: ` + "`presentation.html`" + `).
   It is listed like any slide and flagged as the index.
7. **meta.created / meta.updated** are maintained by deckhand; do not set them.

## Editing

- Call ` + "`get_manifest`" + ` first and pass its checksum as ` + "`if_match`" + ` to
  ` + "`patch_manifest`" + ` so concurrent edits are not lost.
- Patches merge objects key by key and replace arrays whole. To move one slide,
  send the complete ` + "`slides`" + ` array, or use ` + "`reorder_slides`" + `.
- Set a key to ` + "`null`" + ` to remove it, e.g. ` + "`{\"groups\": {\"old\": null}}`" + `.
- A rejected patch reports every violation by field path and leaves the file
  untouched.
`
