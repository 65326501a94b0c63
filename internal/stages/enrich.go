// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stages

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/content-engine/internal/genai"
	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/pkg/types"
)

// The enrichment stages run in the concurrent phase. Each writes only its
// own named slot in the context's concurrent-result mapping and reads
// nothing a sibling writes, so they are safe to interleave arbitrarily.

// citationPattern matches inline citations: [Key] or [Key1; Key2].
var citationPattern = regexp.MustCompile(`\[([^\[\]]+)\]`)

// markdownLinkPattern matches [text](url) links with an http(s) target.
var markdownLinkPattern = regexp.MustCompile(`\]\((https?://[^)\s]+)\)`)

// CitationsStage harvests citation keys from the structured draft.
type CitationsStage struct{}

func (s *CitationsStage) Ordinal() int { return 5 }
func (s *CitationsStage) Name() string { return NameCitations }

func (s *CitationsStage) Run(_ context.Context, ec *pipeline.Context) error {
	keys := extractCitationKeys(draftText(ec))
	ec.SetEnrichment(NameCitations, types.Enrichment{
		Stage:     NameCitations,
		Citations: keys,
	})
	return nil
}

// extractCitationKeys finds citation keys in text, handling both single
// citations [Key] and multi-citations [Key1; Key2]. Markdown links and
// other bracket content are rejected.
func extractCitationKeys(text string) []string {
	matches := citationPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool)
	for _, m := range matches {
		for _, p := range strings.Split(m[1], ";") {
			key := strings.TrimSpace(p)
			if key != "" && isCitationKey(key) {
				seen[key] = true
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// isCitationKey checks whether a string looks like a citation key
// (AuthorYear format): alphanumeric with hyphens, at least one letter and
// one digit.
func isCitationKey(s string) bool {
	hasLetter := false
	hasDigit := false
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			hasLetter = true
		case c >= '0' && c <= '9':
			hasDigit = true
		case c == '-', c == '_':
			// allowed
		default:
			return false
		}
	}
	return hasLetter && hasDigit
}

// maxLinkChecks bounds outbound probes per draft.
const maxLinkChecks = 10

// LinksStage probes the draft's outbound links and records their status.
type LinksStage struct {
	Client *http.Client
	Config types.HTTPConfig
}

func (s *LinksStage) Ordinal() int { return 6 }
func (s *LinksStage) Name() string { return NameLinks }

func (s *LinksStage) Run(ctx context.Context, ec *pipeline.Context) error {
	urls := extractLinks(draftText(ec))
	if len(urls) > maxLinkChecks {
		urls = urls[:maxLinkChecks]
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: s.Config.Timeout}
	}

	checks := make([]types.LinkCheck, 0, len(urls))
	for _, u := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
		if err != nil {
			checks = append(checks, types.LinkCheck{URL: u})
			continue
		}
		if s.Config.UserAgent != "" {
			req.Header.Set("User-Agent", s.Config.UserAgent)
		}
		resp, err := httputil.DoWithRetry(ctx, client, req, 1)
		if err != nil {
			checks = append(checks, types.LinkCheck{URL: u})
			continue
		}
		resp.Body.Close()
		checks = append(checks, types.LinkCheck{
			URL:        u,
			StatusCode: resp.StatusCode,
			OK:         resp.StatusCode < 400,
		})
	}

	ec.SetEnrichment(NameLinks, types.Enrichment{
		Stage: NameLinks,
		Links: checks,
	})
	return nil
}

// extractLinks returns the unique http(s) targets of Markdown links, in
// first-appearance order.
func extractLinks(text string) []string {
	matches := markdownLinkPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool)
	var urls []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			urls = append(urls, m[1])
		}
	}
	return urls
}

// ImageStage asks the generative client for a lead-image suggestion.
type ImageStage struct {
	Client genai.Client
}

func (s *ImageStage) Ordinal() int { return 7 }
func (s *ImageStage) Name() string { return NameImage }

func (s *ImageStage) Run(ctx context.Context, ec *pipeline.Context) error {
	title := ec.Params.Topic
	if ec.Structured != nil && ec.Structured.Title != "" {
		title = ec.Structured.Title
	}

	prompt := fmt.Sprintf(
		"Suggest a lead image for an article titled %q. Reply with two lines:\nalt: <alt text>\nprompt: <image generation prompt>",
		title,
	)
	reply, err := s.Client.Generate(ctx, prompt, genai.GenerateOptions{MaxTokens: 200})
	if err != nil {
		return fmt.Errorf("requesting image suggestion: %w", err)
	}

	suggestion := parseImageReply(reply)
	if suggestion == nil {
		return fmt.Errorf("unparseable image suggestion: %q", reply)
	}

	ec.SetEnrichment(NameImage, types.Enrichment{
		Stage: NameImage,
		Image: suggestion,
	})
	return nil
}

// parseImageReply reads the "alt:" and "prompt:" lines from the model's
// reply. Returns nil when neither line is present.
func parseImageReply(reply string) *types.ImageSuggestion {
	var s types.ImageSuggestion
	for _, line := range strings.Split(reply, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		switch {
		case strings.HasPrefix(lower, "alt:"):
			s.AltText = strings.TrimSpace(trimmed[len("alt:"):])
		case strings.HasPrefix(lower, "prompt:"):
			s.Prompt = strings.TrimSpace(trimmed[len("prompt:"):])
		}
	}
	if s.AltText == "" && s.Prompt == "" {
		return nil
	}
	return &s
}

// draftText returns the best available draft text: the structured sections
// when extraction succeeded, the raw draft otherwise.
func draftText(ec *pipeline.Context) string {
	if ec.Structured == nil {
		return ec.RawDraft
	}
	var b strings.Builder
	for _, sec := range ec.Structured.Sections {
		if sec.Heading != "" {
			fmt.Fprintf(&b, "## %s\n\n", sec.Heading)
		}
		b.WriteString(sec.Body)
		b.WriteString("\n\n")
	}
	return b.String()
}
