package service

import (
	"context"
	"errors"
	"strings"

	"github.com/RhaCode/Groci-Smart-sub000/internal/apierror"
	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"
	"github.com/RhaCode/Groci-Smart-sub000/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryService defines business operations for the category tree.
// The parent graph must stay a forest: every reparent re-validates the
// cycle check at write time with a compare-and-swap on parent_id, so a
// concurrent reparent cannot sneak a cycle past the read-time check.
type CategoryService interface {
	Create(ctx context.Context, viewer Viewer, req dto.CreateCategoryRequest) (dto.CategoryResponse, error)
	Get(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.CategoryResponse, error)
	ListRoots(ctx context.Context, viewer Viewer) ([]dto.CategoryResponse, error)
	Update(ctx context.Context, viewer Viewer, id uuid.UUID, req dto.UpdateCategoryRequest) (dto.CategoryResponse, error)
	Reparent(ctx context.Context, viewer Viewer, id uuid.UUID, newParent *uuid.UUID) (dto.CategoryResponse, error)
	// SelectableParents is the candidate set for a reparent: all categories
	// minus the category itself minus its descendants.
	SelectableParents(ctx context.Context, viewer Viewer, id uuid.UUID) ([]dto.CategoryResponse, error)
	Descendants(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	Delete(ctx context.Context, viewer Viewer, id uuid.UUID) error
	Approve(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.CategoryResponse, error)
	Reject(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.CategoryResponse, error)
}

type categoryService struct {
	repo repository.CategoryRepository
}

func NewCategoryService(repo repository.CategoryRepository) CategoryService {
	return &categoryService{repo: repo}
}

const reparentRetries = 3

func mapCategory(c model.Category) dto.CategoryResponse {
	resp := dto.CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		ParentID:    c.ParentID,
		Status:      string(c.Status),
	}
	for _, child := range c.Subcategories {
		resp.Subcategories = append(resp.Subcategories, mapCategory(child))
	}
	return resp
}

func (s *categoryService) Create(ctx context.Context, viewer Viewer, req dto.CreateCategoryRequest) (dto.CategoryResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return dto.CategoryResponse{}, apierror.Validation("Category name must not be blank")
	}

	existing, err := s.repo.FindByName(ctx, req.Name)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.CategoryResponse{}, err
	}
	if existing != nil {
		return dto.CategoryResponse{}, apierror.Validation("A category named %q already exists", req.Name)
	}

	if req.ParentID != nil {
		// Linking to a pending parent is allowed — the child only becomes
		// publicly visible once the parent is approved too.
		if _, err := s.repo.FindByID(ctx, *req.ParentID); err != nil {
			return dto.CategoryResponse{}, notFound(err, "Parent category not found")
		}
	}

	c := &model.Category{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
		Moderation: model.Moderation{
			Status:      model.StatusPending,
			SubmittedBy: viewer.ID,
		},
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return dto.CategoryResponse{}, err
	}
	return mapCategory(*c), nil
}

func (s *categoryService) Get(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.CategoryResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.CategoryResponse{}, notFound(err, "Category not found")
	}
	if err := visibleOrNotFound(c.Moderation, viewer, "Category not found"); err != nil {
		return dto.CategoryResponse{}, err
	}
	return mapCategory(*c), nil
}

func (s *categoryService) ListRoots(ctx context.Context, viewer Viewer) ([]dto.CategoryResponse, error) {
	roots, err := s.repo.ListRoots(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]dto.CategoryResponse, 0, len(roots))
	for _, c := range roots {
		if !c.VisibleTo(viewer.ID, viewer.Moderator) {
			continue
		}
		resp := mapCategory(c)
		// Children inherit the visibility filter
		filtered := resp.Subcategories[:0]
		for i, child := range c.Subcategories {
			if child.VisibleTo(viewer.ID, viewer.Moderator) {
				filtered = append(filtered, resp.Subcategories[i])
			}
		}
		resp.Subcategories = filtered
		result = append(result, resp)
	}
	return result, nil
}

func (s *categoryService) Update(ctx context.Context, viewer Viewer, id uuid.UUID, req dto.UpdateCategoryRequest) (dto.CategoryResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.CategoryResponse{}, notFound(err, "Category not found")
	}
	if err := visibleOrNotFound(c.Moderation, viewer, "Category not found"); err != nil {
		return dto.CategoryResponse{}, err
	}
	if !viewer.Moderator && (c.SubmittedBy != viewer.ID || c.Status != model.StatusPending) {
		return dto.CategoryResponse{}, apierror.Permission("Only moderators may edit this category")
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return dto.CategoryResponse{}, apierror.Validation("Category name must not be blank")
		}
		if *req.Name != c.Name {
			existing, err := s.repo.FindByName(ctx, *req.Name)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.CategoryResponse{}, err
			}
			if existing != nil && existing.ID != id {
				return dto.CategoryResponse{}, apierror.Validation("A category named %q already exists", *req.Name)
			}
		}
		c.Name = *req.Name
	}
	if req.Description != nil {
		c.Description = req.Description
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return dto.CategoryResponse{}, err
	}
	return mapCategory(*c), nil
}

// descendantSet walks the children map breadth-first from id. The visited
// set bounds the traversal by total category count, so it terminates even
// if a failed invariant ever left a cycle in storage.
func descendantSet(all []model.Category, id uuid.UUID) map[uuid.UUID]bool {
	children := make(map[uuid.UUID][]uuid.UUID, len(all))
	for _, c := range all {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	visited := make(map[uuid.UUID]bool)
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if visited[child] {
				continue
			}
			visited[child] = true
			queue = append(queue, child)
		}
	}
	return visited
}

func (s *categoryService) Descendants(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, notFound(err, "Category not found")
	}
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	set := descendantSet(all, id)
	ids := make([]uuid.UUID, 0, len(set))
	for _, c := range all {
		if set[c.ID] {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (s *categoryService) SelectableParents(ctx context.Context, viewer Viewer, id uuid.UUID) ([]dto.CategoryResponse, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, notFound(err, "Category not found")
	}
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	excluded := descendantSet(all, id)
	excluded[id] = true

	result := make([]dto.CategoryResponse, 0, len(all))
	for _, c := range all {
		if excluded[c.ID] || !c.VisibleTo(viewer.ID, viewer.Moderator) {
			continue
		}
		result = append(result, dto.CategoryResponse{
			ID:       c.ID,
			Name:     c.Name,
			ParentID: c.ParentID,
			Status:   string(c.Status),
		})
	}
	return result, nil
}

func (s *categoryService) Reparent(ctx context.Context, viewer Viewer, id uuid.UUID, newParent *uuid.UUID) (dto.CategoryResponse, error) {
	if newParent != nil && *newParent == id {
		return dto.CategoryResponse{}, apierror.Cycle("A category cannot be its own parent")
	}

	// Fetch-validate-CAS loop: the descendant set read here may go stale
	// under concurrent reparenting, so the write only lands when parent_id
	// still matches what was read. A lost swap re-reads and re-validates.
	for attempt := 0; attempt < reparentRetries; attempt++ {
		c, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return dto.CategoryResponse{}, notFound(err, "Category not found")
		}
		if !viewer.Moderator && (c.SubmittedBy != viewer.ID || c.Status != model.StatusPending) {
			return dto.CategoryResponse{}, apierror.Permission("Only moderators may move this category")
		}

		if newParent != nil {
			if _, err := s.repo.FindByID(ctx, *newParent); err != nil {
				return dto.CategoryResponse{}, notFound(err, "Parent category not found")
			}
			all, err := s.repo.ListAll(ctx)
			if err != nil {
				return dto.CategoryResponse{}, err
			}
			if descendantSet(all, id)[*newParent] {
				return dto.CategoryResponse{}, apierror.Cycle(
					"Cannot move %q under its own descendant", c.Name)
			}
		}

		rows, err := s.repo.UpdateParentIf(ctx, id, c.ParentID, newParent)
		if err != nil {
			return dto.CategoryResponse{}, err
		}
		if rows > 0 {
			c.ParentID = newParent
			return mapCategory(*c), nil
		}
		// Parent changed under us — loop and re-validate.
	}
	return dto.CategoryResponse{}, apierror.Unavailable(
		"Category was moved concurrently — retry the operation")
}

func (s *categoryService) Delete(ctx context.Context, viewer Viewer, id uuid.UUID) error {
	if err := requireModerator(viewer); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return notFound(err, "Category not found")
	}
	n, err := s.repo.CountChildren(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apierror.HasChildren("Category still has %d subcategories", n)
	}
	return s.repo.Delete(ctx, id)
}

func (s *categoryService) Approve(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.CategoryResponse, error) {
	return s.moderate(ctx, viewer, id, model.StatusApproved)
}

func (s *categoryService) Reject(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.CategoryResponse, error) {
	return s.moderate(ctx, viewer, id, model.StatusRejected)
}

func (s *categoryService) moderate(ctx context.Context, viewer Viewer, id uuid.UUID, to model.ModerationStatus) (dto.CategoryResponse, error) {
	if err := requireModerator(viewer); err != nil {
		return dto.CategoryResponse{}, err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return dto.CategoryResponse{}, notFound(err, "Category not found")
	}
	rows, err := s.repo.UpdateStatus(ctx, id, model.StatusPending, to)
	if err := checkTransition(rows, err, "Category"); err != nil {
		return dto.CategoryResponse{}, err
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.CategoryResponse{}, err
	}
	return mapCategory(*c), nil
}
