package platform

import (
	"context"

	"github.com/platinummonkey/chefhub/pkg/authz"
	"github.com/platinummonkey/chefhub/pkg/content"
	"github.com/platinummonkey/chefhub/pkg/gate"
	"github.com/platinummonkey/chefhub/pkg/identity"
)

// CreateCourse creates a draft course owned by the acting chef
func (s *Service) CreateCourse(ctx context.Context, actor identity.Actor, in content.CourseInput) (*content.Course, error) {
	if err := s.gate.Require(ctx, actor, authz.OpCreate, gate.Course("")); err != nil {
		return nil, err
	}
	return s.content.CreateCourse(ctx, actor.UserID, in)
}

// UpdateCourse replaces the course's mutable fields
func (s *Service) UpdateCourse(ctx context.Context, actor identity.Actor, courseID string, in content.CourseInput) (*content.Course, error) {
	if err := s.gate.Require(ctx, actor, authz.OpUpdate, gate.Course(courseID)); err != nil {
		return nil, err
	}
	c, err := s.content.UpdateCourse(ctx, actor.UserID, courseID, in)
	if err != nil {
		return nil, err
	}
	if c.IsPublished() {
		s.invalidateCatalog(ctx, courseID)
	}
	return c, nil
}

// PublishCourse makes a draft course visible in the catalog
func (s *Service) PublishCourse(ctx context.Context, actor identity.Actor, courseID string) (*content.Course, error) {
	if err := s.gate.Require(ctx, actor, authz.OpPublish, gate.Course(courseID)); err != nil {
		return nil, err
	}
	c, err := s.content.PublishCourse(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx, courseID)
	return c, nil
}

// ArchiveCourse archives a course and its classes
func (s *Service) ArchiveCourse(ctx context.Context, actor identity.Actor, courseID string) (*content.Course, error) {
	if err := s.gate.Require(ctx, actor, authz.OpArchive, gate.Course(courseID)); err != nil {
		return nil, err
	}
	c, err := s.content.ArchiveCourse(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx, courseID)
	return c, nil
}

// MyCourses lists every course of the acting chef, drafts included
func (s *Service) MyCourses(ctx context.Context, actor identity.Actor) ([]*content.Course, error) {
	if !actor.IsChef() {
		return nil, authz.ErrRoleNotPermitted
	}
	courses, err := s.content.ListChefCourses(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if courses == nil {
		courses = []*content.Course{}
	}
	return courses, nil
}

// CreateClass appends a class to a course
func (s *Service) CreateClass(ctx context.Context, actor identity.Actor, courseID string, in content.ClassInput) (*content.Class, error) {
	if err := s.gate.Require(ctx, actor, authz.OpCreate, gate.Course(courseID)); err != nil {
		return nil, err
	}
	cl, err := s.content.CreateClass(ctx, actor.UserID, courseID, in)
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx, courseID)
	return cl, nil
}

// UpdateClass replaces a class's mutable fields and content blocks
func (s *Service) UpdateClass(ctx context.Context, actor identity.Actor, classID string, in content.ClassInput) (*content.Class, error) {
	if err := s.gate.Require(ctx, actor, authz.OpUpdate, gate.Class(classID)); err != nil {
		return nil, err
	}
	return s.content.UpdateClass(ctx, actor.UserID, classID, in)
}

// ArchiveClass retires one class of a course. Students stop seeing it in
// the outline; the recipes it references stay available to the chef.
func (s *Service) ArchiveClass(ctx context.Context, actor identity.Actor, classID string) (*content.Class, error) {
	if err := s.gate.Require(ctx, actor, authz.OpArchive, gate.Class(classID)); err != nil {
		return nil, err
	}
	return s.content.ArchiveClass(ctx, actor.UserID, classID)
}

// ReorderClasses sets the class sequence of a course
func (s *Service) ReorderClasses(ctx context.Context, actor identity.Actor, courseID string, order []string) (*content.Course, error) {
	if err := s.gate.Require(ctx, actor, authz.OpReorder, gate.Course(courseID)); err != nil {
		return nil, err
	}
	return s.content.ReorderClasses(ctx, actor.UserID, courseID, order)
}
