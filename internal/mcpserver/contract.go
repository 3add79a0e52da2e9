package mcpserver

// DocumentFormat describes the subset of Norg that the indexer extracts, so
// LLM consumers know which metadata keys and task annotations are queryable.
const DocumentFormat = `# ansuz Document Format

Workspace documents are Norg files ending in ` + "`.norg`" + `. Only the parts below are indexed.

## Metadata

` + "```" + `norg
@document.meta
title: Weekly review
description: Things to look at every Friday
categories: [
  work
  review
]
authors: alice
created: 2025-01-03
updated: 2025-01-10
@end
` + "```" + `

1. Only the first ` + "`@document.meta`" + ` block is read.
2. ` + "`categories`" + ` and ` + "`authors`" + ` accept a single value or an array.
3. ` + "`created`" + ` and ` + "`updated`" + ` are stored verbatim.

## Tasks

A heading becomes a task when it carries detached modifier extensions:

` + "```" + `norg
* (x|# A|< 5th Jan 2025) Ship release
** ( |> tomorrow) Write changelog
` + "```" + `

| Sigil | Meaning |
|---|---|
| ` + "`( )`" + ` | undone |
| ` + "`(x)`" + ` | done |
| ` + "`(?)`" + ` | needs clarification |
| ` + "`(=)`" + ` | paused |
| ` + "`(!)`" + ` | urgent |
| ` + "`(+ phrase)`" + ` | recurring, with an optional recurrence date |
| ` + "`(-)`" + ` | pending |
| ` + "`(_)`" + ` | canceled |
| ` + "`# X`" + ` | priority |
| ` + "`@ phrase`" + ` | timestamp |
| ` + "`< phrase`" + ` | due date |
| ` + "`> phrase`" + ` | start date |

Date phrases look like ` + "`Tuesday 5th January 2025 14:30`" + `; every part is optional
but the day, month and year are read in that order. Unparseable dates are dropped,
the task is kept.

A task nested under another task is its child. Task text must be unique among
its siblings.

## Tables

- ` + "`docs(id, path, title, description, authors, created, updated, indexed)`" + `
- ` + "`categories(file_id, name)`" + `
- ` + "`tasks(task_id, file_id, parent_id, text, status, due, starts, recurs, priority, timestamp, created, updated)`" + `
`
