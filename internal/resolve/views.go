package resolve

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/trackvia-tools/tv-cli/internal/api"
)

// ViewLister lists the views of an account; api.ViewsService satisfies it.
type ViewLister interface {
	List(ctx context.Context) (*api.Response, error)
}

// ViewID resolves a view argument. A positive integer is used as-is without
// touching the network; anything else is fuzzy-matched against view names.
func ViewID(ctx context.Context, views ViewLister, arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, fmt.Errorf("view is required")
	}
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if id <= 0 {
			return 0, fmt.Errorf("invalid view ID %d: must be positive", id)
		}
		return id, nil
	}

	resp, err := views.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list views: %w", err)
	}
	list, err := api.DecodeViews(resp)
	if err != nil {
		return 0, err
	}

	items := make([]Named, 0, len(list))
	for _, v := range list {
		items = append(items, Named{ID: int64(v.ID), Name: v.Name, Group: v.ApplicationName})
	}
	id, err := FuzzyMatch(arg, items)
	if err != nil {
		return 0, fmt.Errorf("resolve view %q: %w", arg, err)
	}
	return id, nil
}
