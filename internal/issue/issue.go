// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	ConfigLoadFailedId Id = iota + 1
	RootNotFoundId
	ServerStartFailedId
	InvalidRequestId
	ModuleNotFoundId
	SpecialModuleMissingId
	WatchFailedId
	OutputWriteFailedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink  // documentation about this issue type
		extLinks []HttpLink  // external links that might be useful for the user
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the message followed by a "See also" list of links.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.docLinks)+len(i.extLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return sb.String()
}

// Render renders Markdown with the given glamour style ("dark", "light",
// "notty", or a path to a style file).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or did not match the schema.

## Things you can try:
- Print the effective configuration:
~~~
$ modulebox config show
~~~

- Find out which file is being read:
~~~
$ modulebox config path
~~~

- Start over from the defaults:
~~~
$ modulebox config init --force
~~~

## Example config.cue:
~~~cue
root: "./public"
special: {
  env: "./host/env.js"
}
server: {
  address: "127.0.0.1:8080"
  mount: "/modules"
}
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	rootNotFoundIssue = &Issue{
		id: RootNotFoundId,
		mdMsg: `
# Module root not found!

modulebox serves files from a single root directory, and the configured
one does not exist or is not a directory.

## Things you can try:
- Pass the root explicitly:
~~~
$ modulebox serve --root ./public
~~~

- Or set it in your config file or environment:
~~~
$ export MODULEBOX_ROOT=./public
~~~`,
	}

	serverStartFailedIssue = &Issue{
		id: ServerStartFailedId,
		mdMsg: `
# The bundle server failed to start!

The listener could not be bound.

## Common causes:
- Another process already listens on the address
- The port needs elevated privileges (below 1024)
- The host part is not an address of this machine

## Things you can try:
- Pick a different port:
~~~
$ modulebox serve --address 127.0.0.1:0
~~~`,
	}

	invalidRequestIssue = &Issue{
		id: InvalidRequestId,
		mdMsg: `
# Invalid bundle request!

Each query parameter is JSON-encoded and all four are required:

| Parameter | Type |
|---|---|
| from | string, the requiring file |
| normal | array of already-acquired filepaths |
| special | array of already-acquired special identifiers |
| request | string or non-empty array of identifiers |

## Example:
~~~
/modules?from=%22%2Fmain.js%22&normal=%5B%5D&special=%5B%5D&request=%22.%2Flib.js%22
~~~`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found!

An identifier could not be localized under the module root.

## Lookup order:
1. Relative or absolute paths are tried as files, with ".js" and ".json" appended
2. Directories are tried through package.json "main", then index.js
3. Bare identifiers are looked up in the modules directory of every ancestor

## Things you can try:
- Check the spelling and the requiring file passed with --from
- Check the modules_dir setting`,
	}

	specialModuleMissingIssue = &Issue{
		id: SpecialModuleMissingId,
		mdMsg: `
# Special module file missing!

A special identifier is configured, but the host file it points at cannot be
opened.

## Things you can try:
- Check the paths in the special table of your config
- Special paths are host paths and are not resolved against the module root`,
	}

	watchFailedIssue = &Issue{
		id: WatchFailedId,
		mdMsg: `
# Cache invalidation watcher failed!

modulebox could not watch the module root for changes, so cached resolution
records would go stale.

## Things you can try:
- Raise the inotify watch limit:
~~~
$ sudo sysctl fs.inotify.max_user_watches=524288
~~~

- Narrow cache.patterns, or disable cache.watch and restart after edits`,
		extLinks: []HttpLink{"https://github.com/fsnotify/fsnotify#faq"},
	}

	outputWriteFailedIssue = &Issue{
		id: OutputWriteFailedId,
		mdMsg: `
# Could not write the bundle!

The document could not be written to the requested output.

## Things you can try:
- Check that the output directory exists and is writable
- Omit --output to write to standard output`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		rootNotFoundIssue.Id():         rootNotFoundIssue,
		serverStartFailedIssue.Id():    serverStartFailedIssue,
		invalidRequestIssue.Id():       invalidRequestIssue,
		moduleNotFoundIssue.Id():       moduleNotFoundIssue,
		specialModuleMissingIssue.Id(): specialModuleMissingIssue,
		watchFailedIssue.Id():          watchFailedIssue,
		outputWriteFailedIssue.Id():    outputWriteFailedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
