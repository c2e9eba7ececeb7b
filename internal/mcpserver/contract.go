package mcpserver

// PageFormatContract describes what a page needs to be picked up by the
// publisher and how its body ends up in the feed.
const PageFormatContract = `# Page Format Contract

A page is published once. After a successful run its status becomes
` + "`published`" + ` and later runs skip it.

## Properties

| Property       | Notion property (default) | Vault frontmatter key | Required |
|----------------|---------------------------|-----------------------|----------|
| title          | Title                     | ` + "`title`" + `               | no, falls back to "No Title" |
| canonical URL  | URL                       | ` + "`url`" + `                 | no |
| status         | Status                    | ` + "`status`" + `              | no, missing means unpublished |
| publish date   | Publish Date              | ` + "`publish_date`" + `        | only in date mode |
| category       | Type                      | ` + "`type`" + ` or first tag   | no |

In date mode a page is included when its publish date is today or empty.

## Vault page example

` + "```" + `markdown
---
title: Reading list, week 12
url: https://example.com/week-12
type: digest
status: unpublished
---

Body in Markdown.
` + "```" + `

## Block rendering

| Block                    | Markdown source            | Feed markup |
|--------------------------|----------------------------|-------------|
| paragraph                | plain text                 | ` + "`<p>`" + ` |
| heading_1..3             | ` + "`#`, `##`, `###`" + ` (deeper maps to 3) | ` + "`<h1>`..`<h3>`" + ` |
| quote                    | ` + "`> text`" + `                   | ` + "`<blockquote>`" + ` |
| bulleted_list_item       | ` + "`- item`" + `                   | ` + "`<ul><li>`" + ` per item |
| numbered_list_item       | ` + "`1. item`" + `                  | ` + "`<ol><li>`" + ` per item |
| code                     | fenced block               | ` + "`<pre><code class=\"language-x\">`" + ` |
| divider                  | ` + "`---`" + `                      | ` + "`<hr/>`" + ` |
| image                    | ` + "`![caption](url)`" + ` alone    | ` + "`<img>`" + ` plus caption |
| file                     | link to .pdf, .zip, ... alone | download link |
| bookmark                 | Notion bookmark or embed   | link paragraph |

Inline styling nests as strong, em, del, code, with links outermost.
Any other block kind is dropped from the feed without failing the run.
`
