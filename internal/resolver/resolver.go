// Package resolver maps a Member's email to the forge username and
// sheet open id the Field Mapper needs, caching the result on the
// Member row.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"synctl/internal/gateway"
	"synctl/internal/models"
	"synctl/internal/store"
)

// SheetContactResolver is the subset of the sheet gateway the resolver
// needs, kept as an interface so tests can stub it without a subprocess.
type SheetContactResolver interface {
	ResolveContact(ctx context.Context, email string) (openID string, err error)
}

// Resolver resolves forge/sheet identities for a Member by email,
// reading the Store first and only calling out to the sheet gateway on
// a cache miss.
type Resolver struct {
	store *store.Store
	sheet SheetContactResolver
}

// New builds a Resolver over store, backed by sheet for cache misses.
func New(s *store.Store, sheet SheetContactResolver) *Resolver {
	return &Resolver{store: s, sheet: sheet}
}

// Resolve returns the forge username and sheet open id for email,
// creating a Member row if none exists yet. forgeUsername is never
// looked up remotely — it comes from Member creation or
// ResolveFromMapping, per the mapping's own forge-side assignee. A
// missing sheetOpenId is non-fatal: it is returned empty, not as an
// error, since the Field Mapper tolerates an unresolved sheet assignee.
func (r *Resolver) Resolve(ctx context.Context, email string) (forgeUsername, sheetOpenID string, err error) {
	member, err := r.store.FindMemberByEmail(email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", "", fmt.Errorf("resolve %s: %w", email, err)
	}
	if err == nil && member.ForgeUsername != "" && member.SheetOpenID != "" {
		return member.ForgeUsername, member.SheetOpenID, nil
	}

	if member == nil {
		member = &models.Member{Email: email}
	}

	if member.SheetOpenID == "" && r.sheet != nil {
		openID, resolveErr := r.sheet.ResolveContact(ctx, email)
		switch {
		case resolveErr == nil && openID != "":
			member.SheetOpenID = openID
		case errors.Is(resolveErr, gateway.ErrNotFound):
			// no workspace account for this email; leave SheetOpenID empty.
		case resolveErr != nil:
			return member.ForgeUsername, member.SheetOpenID, fmt.Errorf("resolve contact %s: %w", email, resolveErr)
		}
	}

	if err := r.store.UpsertMember(member); err != nil {
		return member.ForgeUsername, member.SheetOpenID, fmt.Errorf("persist resolved member %s: %w", email, err)
	}

	return member.ForgeUsername, member.SheetOpenID, nil
}

// ResolveFromMapping backfills a Member's ForgeUsername from an issue's
// assignee login when the Member was created with only an email — the
// one remote-lookup-free path to a forge identity.
func (r *Resolver) ResolveFromMapping(email, forgeUsername string) error {
	if forgeUsername == "" {
		return nil
	}
	member, err := r.store.FindMemberByEmail(email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return r.store.UpsertMember(&models.Member{Email: email, ForgeUsername: forgeUsername})
		}
		return fmt.Errorf("resolve from mapping %s: %w", email, err)
	}
	if member.ForgeUsername != "" {
		return nil
	}
	_, err = r.store.UpdateMember(member.MemberID, func(m *models.Member) error {
		m.ForgeUsername = forgeUsername
		return nil
	})
	return err
}
