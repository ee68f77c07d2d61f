package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/lang/ru"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/ragline/ragline/internal/textnorm"
)

// Field boosts for the fulltext should-clauses. Exact filename matches
// dominate, phrase matches beat loose fuzzy matches.
const (
	phraseBoost     = 2.0
	normPhraseBoost = 1.5
	filenameBoost   = 3.0
	fuzziness       = 1
)

// Per-language field weights. The detected query language's analyzer field
// gets the heavier weight; multilingual queries weigh both equally.
const (
	primaryLangWeight   = 1.2
	secondaryLangWeight = 0.6
)

// LexicalIndex provides multilingual full-text search over chunks using
// bleve. Content is indexed through both the English and Russian analyzers
// plus a pre-normalized field, so stemming and stopword handling work for
// mixed-language collections.
type LexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// NewLexicalIndex opens or creates a bleve index at path.
// An empty path creates an in-memory index for tests.
func NewLexicalIndex(path string) (*LexicalIndex, error) {
	mapping := buildIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, mapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}

	return &LexicalIndex{index: idx}, nil
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	contentEn := bleve.NewTextFieldMapping()
	contentEn.Analyzer = en.AnalyzerName

	contentRu := bleve.NewTextFieldMapping()
	contentRu.Analyzer = ru.AnalyzerName

	contentNorm := bleve.NewTextFieldMapping()

	keywordField := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		return f
	}

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content_en", contentEn)
	doc.AddFieldMappingsAt("content_ru", contentRu)
	doc.AddFieldMappingsAt("content_norm", contentNorm)
	doc.AddFieldMappingsAt("filename", keywordField())
	doc.AddFieldMappingsAt("file_id", keywordField())
	doc.AddFieldMappingsAt("organization_id", keywordField())
	doc.AddFieldMappingsAt("owner_id", keywordField())
	doc.AddFieldMappingsAt("allowed_roles", keywordField())
	doc.AddFieldMappingsAt("allowed_users", keywordField())
	doc.AddFieldMappingsAt("public", bleve.NewBooleanFieldMapping())

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Index adds chunks to the lexical index. Content is fed through both
// language analyzers; the content_norm field carries the same normalized
// text the vector path embeds, keeping the two spaces aligned.
func (l *LexicalIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return NewSearchError("lexical", "index", errClosed)
	}

	batch := l.index.NewBatch()
	for _, c := range chunks {
		lang := textnorm.DetectLanguage(c.Content)
		doc := map[string]interface{}{
			"content_en":      c.Content,
			"content_ru":      c.Content,
			"content_norm":    textnorm.Normalize(c.Content, lang),
			"filename":        strings.ToLower(c.Filename),
			"file_id":         c.FileID,
			"organization_id": c.OrganizationID,
			"owner_id":        c.OwnerID,
			"allowed_roles":   c.AllowedRoles,
			"allowed_users":   c.AllowedUsers,
			"public":          c.Public,
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return NewSearchError("lexical", "batch index", err)
		}
	}

	if err := l.index.Batch(batch); err != nil {
		return NewSearchError("lexical", "apply batch", err)
	}
	return nil
}

// Delete removes chunks from the index by ID.
func (l *LexicalIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return NewSearchError("lexical", "delete", errClosed)
	}

	batch := l.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := l.index.Batch(batch); err != nil {
		return NewSearchError("lexical", "apply delete batch", err)
	}
	return nil
}

// Fulltext runs the multi-clause full-text query: fuzzy match, phrase
// match (boost 2.0), normalized-field phrase match (boost 1.5), and exact
// filename match (boost 3.0) as should-clauses requiring at least one hit,
// with the tenant filter as a hard constraint.
func (l *LexicalIndex) Fulltext(
	ctx context.Context,
	rawQuery, normQuery string,
	lang textnorm.Language,
	tenant TenantFilter,
	size int,
) ([]*LexicalResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, NewSearchError("lexical", "fulltext", errClosed)
	}

	enWeight, ruWeight := languageWeights(lang)

	should := make([]query.Query, 0, 8)

	// Fuzzy multi-match, edit-distance tolerant. Fixed clause order keeps
	// query construction deterministic.
	langFields := []struct {
		field  string
		weight float64
	}{
		{"content_en", enWeight},
		{"content_ru", ruWeight},
	}
	for _, lf := range langFields {
		field, weight := lf.field, lf.weight
		fuzzy := query.NewMatchQuery(rawQuery)
		fuzzy.SetField(field)
		fuzzy.SetFuzziness(fuzziness)
		fuzzy.SetOperator(query.MatchQueryOperatorOr)
		fuzzy.SetBoost(weight)
		should = append(should, fuzzy)

		phrase := query.NewMatchPhraseQuery(rawQuery)
		phrase.SetField(field)
		phrase.SetBoost(phraseBoost * weight)
		should = append(should, phrase)
	}

	if normQuery != "" {
		normPhrase := query.NewMatchPhraseQuery(normQuery)
		normPhrase.SetField("content_norm")
		normPhrase.SetBoost(normPhraseBoost)
		should = append(should, normPhrase)
	}

	filename := query.NewTermQuery(strings.ToLower(strings.TrimSpace(rawQuery)))
	filename.SetField("filename")
	filename.SetBoost(filenameBoost)
	should = append(should, filename)

	root := query.NewBooleanQuery(nil, should, nil)
	root.SetMinShould(1)

	if clause := tenantClause(tenant); clause != nil {
		root.AddMust(clause)
	}

	req := bleve.NewSearchRequestOptions(root, size, 0, false)
	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, NewSearchError("lexical", "search", err)
	}

	results := make([]*LexicalResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, &LexicalResult{ID: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// tenantClause translates a TenantFilter into bleve query clauses: a hard
// organization constraint plus should-clauses for owner, role, explicit
// user/file grants, and public documents, with minimum-should-match 1
// whenever any soft clause exists. Returns nil for an empty filter.
func tenantClause(tenant TenantFilter) query.Query {
	if tenant.Empty() {
		return nil
	}

	clause := query.NewBooleanQuery(nil, nil, nil)

	if tenant.OrganizationID != "" {
		org := query.NewTermQuery(tenant.OrganizationID)
		org.SetField("organization_id")
		clause.AddMust(org)
	}

	var should []query.Query
	if tenant.UserID != "" {
		owner := query.NewTermQuery(tenant.UserID)
		owner.SetField("owner_id")
		should = append(should, owner)

		allowedUser := query.NewTermQuery(tenant.UserID)
		allowedUser.SetField("allowed_users")
		should = append(should, allowedUser)
	}
	if tenant.Role != "" {
		role := query.NewTermQuery(tenant.Role)
		role.SetField("allowed_roles")
		should = append(should, role)
	}
	for _, f := range tenant.AllowedFiles {
		byID := query.NewTermQuery(f)
		byID.SetField("file_id")
		should = append(should, byID)

		byName := query.NewTermQuery(strings.ToLower(f))
		byName.SetField("filename")
		should = append(should, byName)
	}

	if len(should) > 0 {
		public := query.NewBoolFieldQuery(true)
		public.SetField("public")
		should = append(should, public)

		clause.AddShould(should...)
		clause.SetMinShould(1)
	}

	return clause
}

func languageWeights(lang textnorm.Language) (enWeight, ruWeight float64) {
	switch lang {
	case textnorm.LanguageRussian:
		return secondaryLangWeight, primaryLangWeight
	case textnorm.LanguageEnglish:
		return primaryLangWeight, secondaryLangWeight
	default:
		return 1.0, 1.0
	}
}

// Count returns the number of indexed documents.
func (l *LexicalIndex) Count() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return 0, errClosed
	}
	return l.index.DocCount()
}

// Close releases the index.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.index.Close()
}
