package tenant

import (
	"os"
	"strings"

	"github.com/go-git/go-git/v5/config"
)

// DefaultTenantID returns a tenant ID for single-operator CLI use.
// Priority: git global user.name → $USER → "local".
func DefaultTenantID() string {
	cfg, err := config.LoadConfig(config.GlobalScope)
	if err == nil && cfg.User.Name != "" {
		name := strings.ToLower(cfg.User.Name)
		name = strings.ReplaceAll(name, " ", "_")
		return sanitizeIdentifier(name)
	}

	if user := os.Getenv("USER"); user != "" {
		return sanitizeIdentifier(strings.ToLower(user))
	}

	return "local"
}

// sanitizeIdentifier keeps only characters valid in namespace identifiers.
func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	// "__" is the namespace field separator and never valid inside an
	// identifier.
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	if out == "" {
		return "local"
	}
	return out
}
