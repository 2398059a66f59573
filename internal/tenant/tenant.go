// Package tenant resolves tenancy tuples to storage namespaces.
package tenant

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Mode selects the isolation granularity for resolved namespaces.
type Mode string

const (
	// ModeDept shares one namespace per department (cost-efficient default).
	ModeDept Mode = "dept"
	// ModeUser isolates namespaces per individual user.
	ModeUser Mode = "user"
)

// DefaultCollection is used when a request does not name a collection.
const DefaultCollection = "knowledgebase"

// Common errors.
var (
	ErrInvalidMode       = errors.New("invalid tenancy mode")
	ErrInvalidTenantID   = errors.New("invalid tenant ID")
	ErrInvalidDeptID     = errors.New("invalid department ID")
	ErrInvalidUserID     = errors.New("invalid user ID")
	ErrInvalidCollection = errors.New("invalid collection")
)

// identifierPattern allows alphanumeric, hyphen, underscore.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validIdentifier additionally rejects the "__" field separator so distinct
// tuples can never resolve to the same namespace.
func validIdentifier(s string) bool {
	return identifierPattern.MatchString(s) && !strings.Contains(s, "__")
}

// Tenancy identifies the owner of a namespace.
type Tenancy struct {
	TenantID   string
	DeptID     string
	UserID     string
	Collection string
}

// Namespace is the derived isolation unit. One governance manifest and one
// vector index live under each namespace.
type Namespace string

// ParseMode validates a mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDept, ModeUser:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Resolve maps a tenancy tuple and isolation mode to a namespace.
//
// Resolution is pure and deterministic: identical inputs always yield the
// byte-identical namespace string, and distinct tuples under the same mode
// never collide (field separators cannot appear in validated identifiers).
//
//	dept mode: {tenant}__{dept}__{collection}
//	user mode: {tenant}__{dept}__user-{user}__{collection}
func Resolve(t Tenancy, mode Mode) (Namespace, error) {
	if t.Collection == "" {
		t.Collection = DefaultCollection
	}

	if !validIdentifier(t.TenantID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTenantID, t.TenantID)
	}
	if !validIdentifier(t.DeptID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDeptID, t.DeptID)
	}
	if !validIdentifier(t.Collection) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCollection, t.Collection)
	}

	switch mode {
	case ModeDept:
		return Namespace(fmt.Sprintf("%s__%s__%s", t.TenantID, t.DeptID, t.Collection)), nil
	case ModeUser:
		if !validIdentifier(t.UserID) {
			return "", fmt.Errorf("%w: %q", ErrInvalidUserID, t.UserID)
		}
		return Namespace(fmt.Sprintf("%s__%s__user-%s__%s", t.TenantID, t.DeptID, t.UserID, t.Collection)), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

// IndexDir returns the vector index directory for this namespace under root.
func (n Namespace) IndexDir(root string) string {
	return filepath.Join(root, "indexes", string(n), "current")
}

// ManifestPath returns the governance manifest path for this namespace under root.
func (n Namespace) ManifestPath(root string) string {
	return filepath.Join(root, "manifests", string(n)+".json")
}

func (n Namespace) String() string {
	return string(n)
}
