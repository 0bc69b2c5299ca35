package compat

import (
	"regexp"

	"github.com/dataporter/mysql-porter/pkg/catalog"
)

type rule struct {
	option  Option
	kinds   []catalog.Kind
	rewrite func(string) string
}

func (r rule) applies(kind catalog.Kind) bool {
	for _, k := range r.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

var (
	engineRe = regexp.MustCompile(`(?i)ENGINE\s*=\s*\w+`)

	definerRe = regexp.MustCompile(
		`(?i)\s+DEFINER\s*=\s*(?:` + "`[^`]+`" + `|'[^']+'|[^\s@]+)@(?:` + "`[^`]+`" + `|'[^']+'|\S+)`)
	sqlSecurityRe = regexp.MustCompile(`(?i)SQL\s+SECURITY\s+DEFINER`)

	tablespaceCommentRe = regexp.MustCompile(`(?i)\s*/\*!50100\s+TABLESPACE\s+` + "`[^`]+`" + `\s*\*/`)
	tablespaceRe        = regexp.MustCompile(`(?i)\s+TABLESPACE\s*=?\s*(?:` + "`[^`]+`" + `|\w+)`)

	keyBlockSizeRe = regexp.MustCompile(`(?i)\s*KEY_BLOCK_SIZE\s*=?\s*\d+`)

	withParserCommentRe = regexp.MustCompile(`(?i)\s*/\*!50100\s+WITH\s+PARSER\s+` + "`\\w+`" + `\s*\*/`)
	withParserRe        = regexp.MustCompile(`(?i)\s+WITH\s+PARSER\s+` + "`?\\w+`?")
)

// rules run in declaration order; keep that order stable, it is part of
// the determinism contract.
var rules = []rule{
	{
		option: ForceInnoDB,
		kinds:  []catalog.Kind{catalog.KindTable},
		rewrite: func(ddl string) string {
			return engineRe.ReplaceAllString(ddl, "ENGINE=InnoDB")
		},
	},
	{
		option: StripDefiners,
		kinds:  []catalog.Kind{catalog.KindView, catalog.KindEvent, catalog.KindRoutine},
		rewrite: func(ddl string) string {
			ddl = definerRe.ReplaceAllString(ddl, "")
			return sqlSecurityRe.ReplaceAllString(ddl, "SQL SECURITY INVOKER")
		},
	},
	{
		option: StripTablespaces,
		kinds:  []catalog.Kind{catalog.KindTable},
		rewrite: func(ddl string) string {
			ddl = tablespaceCommentRe.ReplaceAllString(ddl, "")
			return tablespaceRe.ReplaceAllString(ddl, "")
		},
	},
	{
		option: StripIndexOptions,
		kinds:  []catalog.Kind{catalog.KindTable},
		rewrite: func(ddl string) string {
			ddl = keyBlockSizeRe.ReplaceAllString(ddl, "")
			ddl = withParserCommentRe.ReplaceAllString(ddl, "")
			return withParserRe.ReplaceAllString(ddl, "")
		},
	},
}
