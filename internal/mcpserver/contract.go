package mcpserver

// MarkupContract describes the page markup that LLM consumers should
// follow when editing pages.
const MarkupContract = `# moewiki Page Markup

Pages are CommonMark with GitHub extensions (tables, strikethrough,
task lists, autolinks). The title is passed separately from the body.

## Paths

- Page paths are slash-separated segments, e.g. ` + "`" + `projects/road-map` + "`" + `.
- Segments are normalized to lowercase dash-case: ` + "`" + `RoadMap` + "`" + `
  and ` + "`" + `Road Map` + "`" + ` all become ` + "`" + `road-map` + "`" + `.
- The parent of ` + "`" + `projects/road-map` + "`" + ` is ` + "`" + `projects` + "`" + `.
- Paths under the protected prefix are rejected.

## Links

- ` + "`" + `[[Other Page]]` + "`" + ` links to ` + "`" + `other-page` + "`" + `.
- ` + "`" + `[[projects/RoadMap|the roadmap]]` + "`" + ` sets the display text.
- ` + "`" + `[[Other Page#Some Heading]]` + "`" + ` links to a heading anchor.
- Links to missing pages are allowed; they show up once the page exists.

## Sections

Every heading starts a section. Section 0 is the text before the first
heading. A section edit replaces one section and keeps the rest.

## Tags

Inline ` + "`" + `#tags` + "`" + ` outside code blocks, or a YAML frontmatter ` + "`" + `tags` + "`" + ` list,
are recorded on the page.

## Example

` + "```" + `markdown
Intro paragraph, see [[Team]].

# Goals

- Ship [[projects/RoadMap|the roadmap]] #planning

# Notes

Details in [[Meeting Notes#2025-01-20]].
` + "```" + `
`
