package catalog

import "github.com/cursor2b-collab/vip-sub000/internal/upstream"

// Field names the game-record attribute a rewrite rule targets.
type Field int

const (
	FieldName Field = iota
	FieldPlatformCode
)

// RewriteRule is an ingestion-time data-cleanup rule: when the matched
// attribute equals From, it is replaced with To. These are vendor rebrands
// and code normalizations, not business logic.
type RewriteRule struct {
	Field Field
	From  string
	To    string
}

var rewriteRules = []RewriteRule{
	// Vendor rebrand: the platform still ships the old display name.
	{Field: FieldName, From: "Evoplay Entertainment", To: "EVO Games"},
	{Field: FieldName, From: "TADA Gaming", To: "JILI"},
	// Legacy platform code used by older list entries.
	{Field: FieldPlatformCode, From: "PGSOFT", To: "PG"},
}

func applyRewriteRules(record upstream.GameRecord) upstream.GameRecord {
	for _, rule := range rewriteRules {
		switch rule.Field {
		case FieldName:
			if record.Name == rule.From {
				record.Name = rule.To
			}
		case FieldPlatformCode:
			if record.PlatformCode == rule.From {
				record.PlatformCode = rule.To
			}
		}
	}
	return record
}
