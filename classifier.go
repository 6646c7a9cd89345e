package textmate

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// classifyCacheSize bounds the per-classifier memo.  Scope strings recur
// heavily across a document, so a couple thousand entries covers even large
// grammars while capping memory for pathological ones.
const classifyCacheSize = 2000

// scopeNode is one level of the classification tree.  token is the flat
// display token at this level ("" = none); kids are more-specific subtrees
// keyed by the next dotted segment.
type scopeNode struct {
	token string
	kids  map[string]*scopeNode
}

// scopeTree maps TextMate scope segments, general to specific, onto the
// small fixed set of display-token names a stream-mode editor styles.
// Deeper matches win; a subtree with no match falls back to the nearest
// enclosing level's token.
var scopeTree = map[string]*scopeNode{
	"comment": {token: "comment"},
	"constant": {
		token: "atom",
		kids: map[string]*scopeNode{
			"character": {kids: map[string]*scopeNode{
				"escape": {token: "string-2"},
			}},
			"language": {token: "atom"},
			"numeric":  {token: "number"},
			"other": {kids: map[string]*scopeNode{
				"symbol": {token: "atom"},
			}},
		},
	},
	"entity": {
		kids: map[string]*scopeNode{
			"name": {kids: map[string]*scopeNode{
				"class":    {token: "def"},
				"function": {token: "def"},
				"section":  {token: "header"},
				"tag":      {token: "tag"},
				"type":     {token: "variable-2"},
			}},
			"other": {kids: map[string]*scopeNode{
				"attribute-name":  {token: "attribute"},
				"inherited-class": {token: "def"},
			}},
		},
	},
	"invalid": {
		token: "error",
		kids: map[string]*scopeNode{
			"deprecated": {token: "error"},
			"illegal":    {token: "invalidchar"},
		},
	},
	"keyword": {
		token: "keyword",
		kids: map[string]*scopeNode{
			"operator": {token: "operator"},
		},
	},
	"markup": {
		kids: map[string]*scopeNode{
			"bold":      {token: "strong"},
			"heading":   {token: "header"},
			"italic":    {token: "em"},
			"list":      {token: "variable-2"},
			"quote":     {token: "quote"},
			"raw":       {token: "string-2"},
			"underline": {kids: map[string]*scopeNode{
				"link": {token: "link"},
			}},
		},
	},
	"meta": {
		kids: map[string]*scopeNode{
			"link": {token: "link"},
		},
	},
	"punctuation": {
		kids: map[string]*scopeNode{
			"definition": {kids: map[string]*scopeNode{
				"comment": {token: "comment"},
				"string":  {token: "string"},
				"tag":     {token: "bracket"},
			}},
		},
	},
	"storage": {
		token: "keyword",
		kids: map[string]*scopeNode{
			"modifier": {token: "qualifier"},
			"type":     {token: "keyword"},
		},
	},
	"string": {
		token: "string",
		kids: map[string]*scopeNode{
			"regexp": {token: "string-2"},
		},
	},
	"support": {
		kids: map[string]*scopeNode{
			"class":    {token: "def"},
			"constant": {token: "variable-2"},
			"function": {token: "builtin"},
			"type":     {token: "variable-2"},
			"variable": {token: "variable-2"},
		},
	},
	"variable": {
		token: "variable",
		kids: map[string]*scopeNode{
			"language":  {token: "variable-3"},
			"parameter": {token: "def"},
		},
	},
}

// ScopeClassifier reduces a dotted TextMate scope name to a flat display
// token.  Classification is pure, so results are memoized per scope string
// in a bounded LRU cache.
type ScopeClassifier struct {
	memo *lru.Cache[string, string]
}

// NewScopeClassifier returns a classifier with a cold cache.
func NewScopeClassifier() *ScopeClassifier {
	memo, err := lru.New[string, string](classifyCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(err)
	}
	return &ScopeClassifier{memo: memo}
}

// Classify returns the display token for scope, or "" if no tree level
// matches the scope's leading segment.
func (c *ScopeClassifier) Classify(scope string) string {
	if tok, ok := c.memo.Get(scope); ok {
		return tok
	}
	tok := classifyScope(scope)
	c.memo.Add(scope, tok)
	return tok
}

// classifyScope walks the scope's segments from most general to most
// specific, descending the tree.  The deepest level that defines a token
// wins; segments past the last matching subtree are ignored.
func classifyScope(scope string) string {
	segs := strings.Split(scope, ".")
	node, ok := scopeTree[segs[0]]
	if !ok {
		return ""
	}
	best := node.token
	for _, seg := range segs[1:] {
		child, ok := node.kids[seg]
		if !ok {
			break
		}
		if child.token != "" {
			best = child.token
		}
		node = child
	}
	return best
}
