package application

import (
	"context"
	"errors"
	"testing"

	"takeout/internal/service/cart/domain"
	"takeout/internal/service/catalog"
)

type memCartRepo struct {
	lines  map[int64]*domain.CartLine
	nextID int64
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{lines: make(map[int64]*domain.CartLine), nextID: 1}
}

func (r *memCartRepo) FindByUser(ctx context.Context, userID int64) ([]*domain.CartLine, error) {
	var out []*domain.CartLine
	for _, l := range r.lines {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memCartRepo) FindLine(ctx context.Context, userID int64, itemID string) (*domain.CartLine, error) {
	for _, l := range r.lines {
		if l.UserID == userID && l.ItemID == itemID {
			copied := *l
			return &copied, nil
		}
	}
	return nil, domain.ErrCartLineNotFound
}

func (r *memCartRepo) Insert(ctx context.Context, line *domain.CartLine) error {
	line.ID = r.nextID
	r.nextID++
	copied := *line
	r.lines[line.ID] = &copied
	return nil
}

func (r *memCartRepo) UpdateQuantity(ctx context.Context, lineID int64, quantity int) error {
	l, ok := r.lines[lineID]
	if !ok {
		return domain.ErrCartLineNotFound
	}
	l.Quantity = quantity
	return nil
}

func (r *memCartRepo) DeleteLine(ctx context.Context, lineID int64) error {
	delete(r.lines, lineID)
	return nil
}

func (r *memCartRepo) DeleteByUser(ctx context.Context, userID int64) error {
	for id, l := range r.lines {
		if l.UserID == userID {
			delete(r.lines, id)
		}
	}
	return nil
}

type stubCatalog struct {
	items map[string]*catalog.Item
}

func (s *stubCatalog) FetchItem(ctx context.Context, itemID string) (*catalog.Item, error) {
	if item, ok := s.items[itemID]; ok {
		return item, nil
	}
	return nil, catalog.ErrItemNotFound
}

func TestAddCreatesLineWithSnapshot(t *testing.T) {
	repo := newMemCartRepo()
	svc := NewCartService(repo, &stubCatalog{items: map[string]*catalog.Item{
		"d-1": {ID: "d-1", Name: "烤鸭", Price: 5800, Image: "duck.png", Stock: 10},
	}})

	if err := svc.Add(context.Background(), 7, "d-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines, _ := svc.List(context.Background(), 7)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	l := lines[0]
	if l.Name != "烤鸭" || l.Price != 5800 || l.Image != "duck.png" || l.Quantity != 1 {
		t.Errorf("snapshot not captured: %+v", l)
	}
}

func TestAddIncrementsExistingLine(t *testing.T) {
	repo := newMemCartRepo()
	svc := NewCartService(repo, &stubCatalog{items: map[string]*catalog.Item{
		"d-1": {ID: "d-1", Name: "烤鸭", Price: 5800},
	}})

	for i := 0; i < 3; i++ {
		if err := svc.Add(context.Background(), 7, "d-1"); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	lines, _ := svc.List(context.Background(), 7)
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("expected one line with quantity 3, got %+v", lines)
	}
}

func TestAddRejectsDegradedItem(t *testing.T) {
	repo := newMemCartRepo()
	svc := NewCartService(repo, &stubCatalog{items: map[string]*catalog.Item{
		"d-1": catalog.FallbackItem("d-1"),
	}})

	if err := svc.Add(context.Background(), 7, "d-1"); !errors.Is(err, catalog.ErrItemNotFound) {
		t.Fatalf("expected rejection for degraded item, got %v", err)
	}
	if lines, _ := svc.List(context.Background(), 7); len(lines) != 0 {
		t.Errorf("degraded item must not enter the cart: %+v", lines)
	}
}

func TestSubDecrementsAndDeletesAtOne(t *testing.T) {
	repo := newMemCartRepo()
	svc := NewCartService(repo, &stubCatalog{items: map[string]*catalog.Item{
		"d-1": {ID: "d-1", Name: "烤鸭", Price: 5800},
	}})

	svc.Add(context.Background(), 7, "d-1")
	svc.Add(context.Background(), 7, "d-1")

	if err := svc.Sub(context.Background(), 7, "d-1"); err != nil {
		t.Fatalf("sub: %v", err)
	}
	lines, _ := svc.List(context.Background(), 7)
	if len(lines) != 1 || lines[0].Quantity != 1 {
		t.Fatalf("expected quantity 1 after sub, got %+v", lines)
	}

	if err := svc.Sub(context.Background(), 7, "d-1"); err != nil {
		t.Fatalf("sub to zero: %v", err)
	}
	if lines, _ := svc.List(context.Background(), 7); len(lines) != 0 {
		t.Errorf("line must be deleted when quantity reaches zero: %+v", lines)
	}
}

func TestSubMissingLine(t *testing.T) {
	svc := NewCartService(newMemCartRepo(), &stubCatalog{})
	if err := svc.Sub(context.Background(), 7, "ghost"); !errors.Is(err, domain.ErrCartLineNotFound) {
		t.Fatalf("expected ErrCartLineNotFound, got %v", err)
	}
}

func TestCleanRemovesOnlyOwnLines(t *testing.T) {
	repo := newMemCartRepo()
	svc := NewCartService(repo, &stubCatalog{items: map[string]*catalog.Item{
		"d-1": {ID: "d-1", Name: "烤鸭", Price: 5800},
	}})

	svc.Add(context.Background(), 7, "d-1")
	svc.Add(context.Background(), 8, "d-1")

	if err := svc.Clean(context.Background(), 7); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if lines, _ := svc.List(context.Background(), 7); len(lines) != 0 {
		t.Errorf("user 7 cart not cleaned: %+v", lines)
	}
	if lines, _ := svc.List(context.Background(), 8); len(lines) != 1 {
		t.Errorf("user 8 cart must be untouched: %+v", lines)
	}
}
