package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "quote.naming") to
// their [FieldDoc] entries. Section keys ("quote") document the table header.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version. Do not edit.",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log": {
		Comment: "Logging configuration",
	},
	"log.level": {
		Comment: "Minimum log level. Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
		Alternatives: []string{
			`level = "debug"`,
			`level = "warn"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Maximum log file size in megabytes before rotation.",
	},

	// ── Features ─────────────────────────────────────────────────
	"features": {
		Comment: "Switch either pipeline off. Requests for a disabled pipeline fail.",
	},
	"features.quote":   {},
	"features.welcome": {},

	// ── Fetch ────────────────────────────────────────────────────
	"fetch": {
		Comment: "How avatar and background URLs are downloaded.",
	},
	"fetch.timeout_seconds": {
		Comment: "Timeout for each HTTP attempt (seconds).",
	},
	"fetch.retry_max": {
		Comment: "Retries after a connection error or a 5xx response. 0 = no retries.",
	},
	"fetch.max_bytes": {
		Comment: "Largest accepted download in bytes.",
	},
	"fetch.allow_hosts": {
		Comment: "Hosts avatars may be downloaded from. Glob patterns supported.\nEmpty = any host.",
		Alternatives: []string{
			`allow_hosts = ["cdn.discordapp.com", "*.discordapp.net"]`,
		},
	},
	"fetch.cache": {
		Comment: "Keep a copy of each download under cache/avatars and use it when\nthe network is unreachable.",
	},
	"fetch.user_agent": {
		Comment: "User-Agent header sent with avatar and font downloads.",
	},

	// ── Fonts ────────────────────────────────────────────────────
	"fonts": {
		Comment: "Fonts for the quote card. Paths accept .ttf, .otf, .woff and .woff2.\nWhen a path is empty or fails to load the fallback is used.\nFallbacks: \"builtin:regular\", \"builtin:italic\", \"builtin:bold\",\n\"builtin:bolditalic\" or \"google:Family:Weight\" (append \"italic\" to the weight).\nGoogle downloads are cached under cache/fonts.",
	},
	"fonts.regular": {
		Comment: "Font for the author name.",
		Alternatives: []string{
			`regular = "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf"`,
		},
	},
	"fonts.italic": {
		Comment: "Font for the quote text.",
		Alternatives: []string{
			`italic = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Oblique.ttf"`,
		},
	},
	"fonts.regular_fallback": {
		Alternatives: []string{
			`regular_fallback = "google:Inter:400"`,
		},
	},
	"fonts.italic_fallback": {
		Alternatives: []string{
			`italic_fallback = "google:Inter:400italic"`,
		},
	},

	// ── Quote ────────────────────────────────────────────────────
	"quote": {
		Comment: "Quote card layout. Offsets named right/bottom are measured from that edge.",
	},
	"quote.width": {
		Comment: "Canvas size in pixels.",
	},
	"quote.height": {},
	"quote.background": {
		Comment: "Colors as #RRGGBB or #RRGGBBAA.",
	},
	"quote.text_color": {},
	"quote.avatar_size": {
		Comment: "Avatar square size, left position, and resize filter.\nThe avatar is centered vertically.\nFilters: \"nearest\", \"linear\", \"catmullrom\", \"lanczos\"",
	},
	"quote.avatar_x": {},
	"quote.avatar_filter": {
		Alternatives: []string{
			`avatar_filter = "lanczos"`,
		},
	},
	"quote.text_right_offset": {
		Comment: "Quote text starts this far from the right edge and this far below\nthe avatar's top edge.",
	},
	"quote.text_top_offset": {},
	"quote.max_text_width": {
		Comment: "Lines wrap at this width (pixels). Words wider than this are split.",
	},
	"quote.font_size": {
		Comment: "Font size (pixel height of a line) and distance between lines.",
	},
	"quote.line_height": {},
	"quote.name_right_offset": {
		Comment: "Author name position, from the right and bottom edges.",
	},
	"quote.name_bottom_offset": {},
	"quote.naming": {
		Comment: "Output file name. Options: \"content\", \"hash\", \"id\"\n  content: \"<quote text>_phrase.png\" (same text overwrites)\n  hash:    first 16 hex digits of the text's SHA-256\n  id:      the id given with the request",
		Alternatives: []string{
			`naming = "hash"`,
			`naming = "id"`,
		},
	},
	"quote.flush_before_split": {
		Comment: "Keep the words already on a line when the next word has to be split.\nWhen false the pending line is dropped, matching classic cards.",
	},

	// ── Welcome ──────────────────────────────────────────────────
	"welcome": {
		Comment: "Welcome banner compositor.",
	},
	"welcome.avatar_size": {
		Comment: "Avatar disc diameter used when a request gives none.",
	},
	"welcome.anchor_shift": {
		Comment: "Move the requested position up and left by this many pixels.",
	},
	"welcome.alpha_threshold": {
		Comment: "Background pixels with alpha below this (0-255) take the avatar pixel\nbefore the blended overlay.",
	},
	"welcome.filter": {
		Comment: "Resize filter. Options: \"nearest\", \"linear\", \"catmullrom\", \"lanczos\"",
	},

	// ── Watch ────────────────────────────────────────────────────
	"watch": {
		Comment: "Spool mode (avatarcard watch). Job files dropped in <data>/jobs are\nrendered and moved to jobs/done or jobs/failed.",
	},
	"watch.poll_interval_seconds": {
		Comment: "Rescan interval (seconds). fsnotify is primary, this is the fallback.",
	},
	"watch.patterns": {
		Comment: "Job file names to pick up. Glob patterns supported.",
		Alternatives: []string{
			`patterns = ["*.toml", "*.job"]`,
		},
	},
}
