package service

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"exam-parser/internal/domain"
	"exam-parser/internal/jsontree"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

var (
	imgDoubleQuotedRe = regexp.MustCompile(`(?i)(<img\b[^>]*\bsrc\s*=\s*")([^"]+)(")`)
	imgSingleQuotedRe = regexp.MustCompile(`(?i)(<img\b[^>]*\bsrc\s*=\s*')([^']+)(')`)
	markdownImageRe   = regexp.MustCompile(`(!\[[^\]]*\]\()([^)]+)(\))`)
	bareAssetRefRe    = regexp.MustCompile(`"(imgs/[^"]+)"`)
)

// AssetDirPrefix is the relative folder the recognition engine stores page images under.
const AssetDirPrefix = "imgs/"

// PendingDeletionSet collects asset files that were read for encoding during one
// inlining pass and may be removed once the result is final.
type PendingDeletionSet struct {
	paths []string
	seen  map[string]struct{}
}

// NewPendingDeletionSet returns an empty set.
func NewPendingDeletionSet() *PendingDeletionSet {
	return &PendingDeletionSet{seen: make(map[string]struct{})}
}

// Add records path once.
func (s *PendingDeletionSet) Add(path string) {
	if _, ok := s.seen[path]; ok {
		return
	}
	s.seen[path] = struct{}{}
	s.paths = append(s.paths, path)
}

// Paths returns the recorded paths in insertion order.
func (s *PendingDeletionSet) Paths() []string {
	return append([]string(nil), s.paths...)
}

func (s *PendingDeletionSet) Len() int { return len(s.paths) }

// Purge removes every recorded file. Files that are already gone are not failures;
// the remaining failures are returned together for the caller to log.
func (s *PendingDeletionSet) Purge(fs afero.Fs) error {
	var result *multierror.Error
	for _, p := range s.paths {
		if err := fs.Remove(p); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// InlineResult is the output of one inlining pass.
type InlineResult struct {
	JSON    string
	Pending *PendingDeletionSet
	// Structured is false when the candidate did not parse and only the textual
	// rewrite was applied.
	Structured bool
}

// AssetInliner replaces local image references in an extraction result with
// base64 payloads.
type AssetInliner struct {
	codec  *AssetCodec
	logger domain.Logger
}

// NewAssetInliner creates an inliner reading assets from fs.
func NewAssetInliner(fs afero.Fs, logger domain.Logger) *AssetInliner {
	return &AssetInliner{codec: NewAssetCodec(fs), logger: logger}
}

// Inline rewrites candidate with relative references resolved against baseDir.
// It never fails: malformed JSON falls back to a textual rewrite and references
// that cannot be resolved are left as they are. The cache and the pending set
// live for this call only.
func (a *AssetInliner) Inline(candidate, baseDir string) InlineResult {
	pass := &inlinePass{
		codec:   a.codec,
		baseDir: baseDir,
		cache:   make(map[string]string),
		pending: NewPendingDeletionSet(),
		logger:  a.logger,
	}

	root, err := jsontree.ParseString(candidate)
	if err != nil {
		a.logger.Debug("Extraction result is not valid JSON, using textual rewrite", "error", err)
		return InlineResult{JSON: pass.rewriteUnstructured(candidate), Pending: pass.pending}
	}

	switch root.Kind() {
	case jsontree.List:
		for _, item := range root.Items() {
			pass.transformQuestion(item)
		}
	case jsontree.Object:
		pass.transformQuestion(root)
	}
	root.RewriteStrings(pass.rewriteText)
	root.RewriteStrings(pass.rewriteBareRef)

	out, err := jsontree.Marshal(root)
	if err != nil {
		a.logger.Warn("Failed to serialize inlined result, returning candidate", "error", err)
		return InlineResult{JSON: candidate, Pending: pass.pending}
	}
	return InlineResult{JSON: string(out), Pending: pass.pending, Structured: true}
}

type inlinePass struct {
	codec   *AssetCodec
	baseDir string
	cache   map[string]string
	pending *PendingDeletionSet
	logger  domain.Logger
}

func (p *inlinePass) transformQuestion(n *jsontree.Node) {
	if n.Kind() != jsontree.Object {
		return
	}
	for _, key := range []string{domain.KeyQuestionImages, domain.KeyAnalysisImages} {
		list, ok := n.Get(key)
		if !ok || list.Kind() != jsontree.List {
			continue
		}
		for _, item := range list.Items() {
			if item.Kind() != jsontree.String {
				continue
			}
			if payload, ok := p.resolve(item.Str()); ok {
				item.SetStr(payload)
			}
		}
	}
	if subs, ok := n.Get(domain.KeySubQuestions); ok && subs.Kind() == jsontree.List {
		for _, sub := range subs.Items() {
			p.transformQuestion(sub)
		}
	}
}

// resolve returns the bare base64 payload for ref, or false when ref is remote,
// already inlined or not a file.
func (p *inlinePass) resolve(ref string) (string, bool) {
	if hasScheme(ref) {
		return "", false
	}
	full := ref
	if !filepath.IsAbs(full) {
		full = filepath.Join(p.baseDir, ref)
	}
	if payload, ok := p.cache[full]; ok {
		return payload, true
	}
	if !p.codec.IsFile(full) {
		return "", false
	}
	payload, err := p.codec.Encode(full)
	if err != nil {
		p.logger.Warn("Failed to encode asset, keeping reference", "path", full, "error", err)
		return "", false
	}
	p.cache[full] = payload
	if p.owns(full) {
		p.pending.Add(full)
	}
	return payload, true
}

// owns reports whether path lies inside the run's working directory. Files
// elsewhere are inlined but never deleted.
func (p *inlinePass) owns(path string) bool {
	rel, err := filepath.Rel(p.baseDir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (p *inlinePass) dataURI(ref string) string {
	payload, ok := p.resolve(ref)
	if !ok {
		return ref
	}
	return DataURI(MimeType(ref), payload)
}

// rewriteText converts HTML and markdown image references that point into the
// asset folder or at an absolute path into data URIs.
func (p *inlinePass) rewriteText(s string) string {
	if !strings.Contains(s, "<") && !strings.Contains(s, "![") {
		return s
	}
	for _, re := range []*regexp.Regexp{imgDoubleQuotedRe, imgSingleQuotedRe, markdownImageRe} {
		s = re.ReplaceAllStringFunc(s, func(m string) string {
			g := re.FindStringSubmatch(m)
			path := g[2]
			if !strings.HasPrefix(path, AssetDirPrefix) && !filepath.IsAbs(path) {
				return m
			}
			return g[1] + p.dataURI(path) + g[3]
		})
	}
	return s
}

// rewriteBareRef replaces a string that is exactly an asset-folder path.
func (p *inlinePass) rewriteBareRef(s string) string {
	if !strings.HasPrefix(s, AssetDirPrefix) || strings.ContainsAny(s, "\"\n") {
		return s
	}
	if payload, ok := p.resolve(s); ok {
		return payload
	}
	return s
}

func (p *inlinePass) rewriteUnstructured(s string) string {
	s = p.rewriteText(s)
	return bareAssetRefRe.ReplaceAllStringFunc(s, func(m string) string {
		ref := m[1 : len(m)-1]
		if payload, ok := p.resolve(ref); ok {
			return `"` + payload + `"`
		}
		return m
	})
}

func hasScheme(ref string) bool {
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "data:")
}
