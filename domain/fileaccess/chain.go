// Package fileaccess decides whether a user may read a stored file, either
// through an ordered chain of feature checkers or through a signed token.
package fileaccess

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sohosai/sos26-sub000/domain/model"
)

// Decision is a single checker's answer.
type Decision int

const (
	// Abstain means the checker does not know this file; the chain moves on.
	Abstain Decision = iota
	Allow
	// Deny stops the chain. No built-in checker returns it.
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "abstain"
	}
}

// Requester is the identity a checker evaluates.
type Requester struct {
	UserID    string
	Committee *model.CommitteeMember
}

type Checker interface {
	Name() string
	Check(ctx context.Context, fileID string, r Requester) (Decision, error)
}

type checkerFunc struct {
	name string
	fn   func(ctx context.Context, fileID string, r Requester) (Decision, error)
}

func (c checkerFunc) Name() string { return c.name }

func (c checkerFunc) Check(ctx context.Context, fileID string, r Requester) (Decision, error) {
	return c.fn(ctx, fileID, r)
}

// CheckerFunc wraps a function as a named Checker.
func CheckerFunc(name string, fn func(ctx context.Context, fileID string, r Requester) (Decision, error)) Checker {
	return checkerFunc{name: name, fn: fn}
}

// Chain evaluates checkers one at a time in registration order.
type Chain struct {
	checkers []Checker
}

func NewChain(checkers ...Checker) *Chain {
	return &Chain{checkers: checkers}
}

// CanAccessFile returns true on the first Allow and false when every checker
// abstains or one denies. A checker error aborts the chain.
func (c *Chain) CanAccessFile(ctx context.Context, fileID string, r Requester) (bool, error) {
	for _, checker := range c.checkers {
		d, err := checker.Check(ctx, fileID, r)
		if err != nil {
			return false, fmt.Errorf("file access checker %s failed: %w", checker.Name(), err)
		}
		switch d {
		case Allow:
			slog.Debug("file access allowed", slog.String("checker", checker.Name()), slog.String("fileID", fileID), slog.String("userID", r.UserID))
			return true, nil
		case Deny:
			slog.Info("file access denied", slog.String("checker", checker.Name()), slog.String("fileID", fileID), slog.String("userID", r.UserID))
			return false, nil
		}
	}
	return false, nil
}

type fileGetter interface {
	GetFile(ctx context.Context, id string) (*model.UploadedFile, error)
}

// PublicFileChecker allows files flagged as public to everyone.
func PublicFileChecker(files fileGetter) Checker {
	return CheckerFunc("public_file", func(ctx context.Context, fileID string, _ Requester) (Decision, error) {
		f, err := files.GetFile(ctx, fileID)
		if err != nil {
			return Abstain, err
		}
		if f != nil && f.IsPublic {
			return Allow, nil
		}
		return Abstain, nil
	})
}
