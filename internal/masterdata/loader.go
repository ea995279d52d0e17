// Package masterdata gathers the option lists a booking form needs.
package masterdata

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"cargodesk/backend/internal/cache"
	"cargodesk/backend/internal/domain"
)

// DefaultTTL is how long a fetched list is reused.
const DefaultTTL = 5 * time.Minute

type Source interface {
	FetchBranches(ctx context.Context) ([]domain.Branch, error)
	FetchBranchStaff(ctx context.Context, branchID int64) ([]domain.Staff, error)
	FetchDrivers(ctx context.Context) ([]domain.Driver, error)
	FetchMasterLists(ctx context.Context, req domain.MasterListRequest) (domain.MasterLists, error)
	FetchPartiesByRole(ctx context.Context, roleID int64) ([]domain.Party, error)
}

type Loader struct {
	source Source
	cache  cache.LookupCache
	ttl    time.Duration
}

func NewLoader(source Source, lookupCache cache.LookupCache, ttl time.Duration) *Loader {
	if lookupCache == nil {
		lookupCache = cache.NoopLookupCache{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Loader{source: source, cache: lookupCache, ttl: ttl}
}

// Load issues every fetch concurrently and merges the results once all have
// settled. A failed fetch leaves its list empty and adds a warning; it never
// aborts the others.
func (l *Loader) Load(ctx context.Context, branchID int64) (domain.Lookups, []string) {
	var (
		lookups  domain.Lookups
		failures = make([]string, 6)
		g        errgroup.Group
	)

	g.Go(func() error {
		branches, err := cached(ctx, l, "branches", l.source.FetchBranches)
		lookups.Branches = branchOptions(branches)
		failures[0] = warning("branches", err)
		return nil
	})
	g.Go(func() error {
		staff, err := cached(ctx, l, fmt.Sprintf("staff:%d", branchID), func(ctx context.Context) ([]domain.Staff, error) {
			return l.source.FetchBranchStaff(ctx, branchID)
		})
		lookups.Staff = staffOptions(staff)
		failures[1] = warning("staff", err)
		return nil
	})
	g.Go(func() error {
		drivers, err := cached(ctx, l, "drivers", l.source.FetchDrivers)
		lookups.Drivers = nonNil(drivers)
		failures[2] = warning("drivers", err)
		return nil
	})
	g.Go(func() error {
		lists, err := cached(ctx, l, "lists", func(ctx context.Context) (domain.MasterLists, error) {
			return l.source.FetchMasterLists(ctx, domain.AllMasterLists())
		})
		lookups.Lists = normalizeLists(lists)
		failures[3] = warning("master lists", err)
		return nil
	})
	g.Go(func() error {
		senders, err := cached(ctx, l, fmt.Sprintf("parties:%d", domain.PartyRoleSender), func(ctx context.Context) ([]domain.Party, error) {
			return l.source.FetchPartiesByRole(ctx, domain.PartyRoleSender)
		})
		lookups.Senders = nonNil(senders)
		failures[4] = warning("senders", err)
		return nil
	})
	g.Go(func() error {
		receivers, err := cached(ctx, l, fmt.Sprintf("parties:%d", domain.PartyRoleReceiver), func(ctx context.Context) ([]domain.Party, error) {
			return l.source.FetchPartiesByRole(ctx, domain.PartyRoleReceiver)
		})
		lookups.Receivers = nonNil(receivers)
		failures[5] = warning("receivers", err)
		return nil
	})
	_ = g.Wait()

	var warnings []string
	for _, w := range failures {
		if w != "" {
			warnings = append(warnings, w)
		}
	}
	return lookups, warnings
}

// Branches returns the branch list through the same cache as Load.
func (l *Loader) Branches(ctx context.Context) ([]domain.Branch, error) {
	return cached(ctx, l, "branches", l.source.FetchBranches)
}

func cached[T any](ctx context.Context, l *Loader, key string, fetch func(context.Context) (T, error)) (T, error) {
	var value T
	hit, err := l.cache.Get(ctx, key, &value)
	if err != nil {
		log.Printf("[masterdata] WARN: cache read failed key=%s: %v", key, err)
	}
	if hit {
		return value, nil
	}

	value, err = fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := l.cache.Set(ctx, key, value, l.ttl); err != nil {
		log.Printf("[masterdata] WARN: cache write failed key=%s: %v", key, err)
	}
	return value, nil
}

func warning(what string, err error) string {
	if err == nil {
		return ""
	}
	log.Printf("[masterdata] WARN: failed to load %s: %v", what, err)
	return fmt.Sprintf("could not load %s", what)
}

func branchOptions(branches []domain.Branch) []domain.Option {
	out := make([]domain.Option, 0, len(branches))
	for _, b := range branches {
		out = append(out, domain.Option{ID: b.ID, Name: b.Name})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func staffOptions(staff []domain.Staff) []domain.Option {
	out := make([]domain.Option, 0, len(staff))
	for _, s := range staff {
		if s.Role != "" && s.Role != domain.StaffRoleOffice {
			continue
		}
		out = append(out, domain.Option{ID: s.ID, Name: s.Name})
	}
	return out
}

func normalizeLists(lists domain.MasterLists) domain.MasterLists {
	return domain.MasterLists{
		ShippingMethods:  nonNil(lists.ShippingMethods),
		PaymentMethods:   nonNil(lists.PaymentMethods),
		DeliveryTypes:    nonNil(lists.DeliveryTypes),
		CollectedByRoles: nonNil(lists.CollectedByRoles),
		Statuses:         nonNil(lists.Statuses),
	}
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
