// Package extract pulls business-contact email candidates out of raw
// scraped page text and checks domain liveness via MX lookup.
package extract

import (
	"context"
	"net"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// genericPrefixes are role-account local parts that never belong to a
// reachable decision maker. An address is dropped when its local part
// matches one exactly or starts with one followed by a dot.
var genericPrefixes = []string{
	"noreply",
	"no-reply",
	"donotreply",
	"support",
	"webmaster",
	"postmaster",
	"abuse",
	"admin",
	"info",
	"contact",
	"hello",
	"sales",
	"marketing",
	"help",
	"privacy",
	"legal",
	"billing",
	"jobs",
	"careers",
	"press",
	"newsletter",
	"mailer-daemon",
}

// MXResolver resolves mail-exchanger records for a domain.
type MXResolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// NetResolver backs MXResolver with the system DNS resolver.
type NetResolver struct {
	resolver net.Resolver
}

func NewNetResolver() *NetResolver {
	return &NetResolver{}
}

func (r *NetResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return r.resolver.LookupMX(ctx, domain)
}

// Extractor finds and validates email candidates in scraped text.
type Extractor struct {
	resolver MXResolver
}

func NewExtractor(resolver MXResolver) *Extractor {
	return &Extractor{resolver: resolver}
}

// Extract scans text for plausible business-contact emails, filters
// generic role accounts, drops addresses already in known, and checks
// MX liveness for the rest. A failed lookup marks the candidate
// mxValid=false; liveness is informational, never a hard filter, and a
// DNS failure is a negative result rather than a retryable error.
// Candidates are processed one at a time with a single lookup each.
func (e *Extractor) Extract(ctx context.Context, text, sourceURL string, known map[string]struct{}) []model.ValidatedEmail {
	var results []model.ValidatedEmail
	seen := make(map[string]struct{})

	for _, match := range emailPattern.FindAllString(text, -1) {
		addr := strings.ToLower(strings.TrimSpace(match))
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}

		if isGeneric(addr) {
			continue
		}
		if _, dup := known[addr]; dup {
			continue
		}

		domain := addr[strings.LastIndex(addr, "@")+1:]
		mxValid := e.hasMX(ctx, domain)
		if !mxValid {
			zap.L().Debug("no MX records for candidate domain",
				zap.String("email", addr),
				zap.String("domain", domain))
		}
		results = append(results, model.ValidatedEmail{
			Address:   addr,
			SourceURL: sourceURL,
			MXValid:   mxValid,
		})
	}
	return results
}

func (e *Extractor) hasMX(ctx context.Context, domain string) bool {
	records, err := e.resolver.LookupMX(ctx, domain)
	if err != nil {
		return false
	}
	return len(records) > 0
}

func isGeneric(addr string) bool {
	at := strings.Index(addr, "@")
	if at < 0 {
		return true
	}
	local := addr[:at]
	for _, prefix := range genericPrefixes {
		if local == prefix || strings.HasPrefix(local, prefix+".") {
			return true
		}
	}
	return false
}

// NormalizeKnown lowercases and trims a list of known emails into the
// set shape Extract expects.
func NormalizeKnown(emails []string) map[string]struct{} {
	known := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		known[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return known
}
