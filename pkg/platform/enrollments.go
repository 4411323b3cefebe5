package platform

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/chefhub/pkg/authz"
	"github.com/platinummonkey/chefhub/pkg/enrollment"
	"github.com/platinummonkey/chefhub/pkg/gate"
	"github.com/platinummonkey/chefhub/pkg/identity"
)

// Progress is a student's completion state in one course
type Progress struct {
	CourseID         string   `json:"course_id"`
	CompletedClasses []string `json:"completed_classes"`
	TotalClasses     int      `json:"total_classes"`
}

// PurchaseCourse starts or resumes the acting student's enrollment in a
// published course. The price is snapshotted from the course.
func (s *Service) PurchaseCourse(ctx context.Context, actor identity.Actor, courseID, idempotencyKey string) (*enrollment.BeginResult, error) {
	if err := s.gate.Require(ctx, actor, authz.OpEnroll, gate.Course(courseID)); err != nil {
		return nil, err
	}
	c, err := s.content.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	res, err := s.ledger.BeginEnrollment(ctx, enrollment.BeginRequest{
		UserID:         actor.UserID,
		CourseID:       courseID,
		IdempotencyKey: idempotencyKey,
		AmountCents:    c.PriceCents,
	})
	if err != nil {
		return nil, err
	}
	if res.Created {
		s.logger.WithFields(logrus.Fields{
			"enrollment_id": res.Enrollment.ID,
			"user_id":       actor.UserID,
			"course_id":     courseID,
			"amount_cents":  c.PriceCents,
		}).Info("course purchase started")
	}
	return res, nil
}

// ConfirmPayment is called by the payment collaborator when a charge
// succeeds
func (s *Service) ConfirmPayment(ctx context.Context, enrollmentID, ref string) (*enrollment.Enrollment, error) {
	return s.ledger.Confirm(ctx, enrollmentID, ref)
}

// FailPayment is called by the payment collaborator when a charge fails
func (s *Service) FailPayment(ctx context.Context, enrollmentID, reason string) (*enrollment.Enrollment, error) {
	return s.ledger.Fail(ctx, enrollmentID, reason)
}

// RevokeEnrollment is called by the payment collaborator on refunds and
// chargebacks
func (s *Service) RevokeEnrollment(ctx context.Context, enrollmentID, reason string) (*enrollment.Enrollment, error) {
	return s.ledger.Revoke(ctx, enrollmentID, reason)
}

// MyEnrollments lists the acting user's enrollments
func (s *Service) MyEnrollments(ctx context.Context, actor identity.Actor) ([]*enrollment.Enrollment, error) {
	if actor.IsAnonymous() {
		return nil, authz.ErrUnauthenticated
	}
	return s.ledger.ListForUser(ctx, actor.UserID)
}

// EnrollmentHistory returns the transition log of one of the acting user's
// enrollments
func (s *Service) EnrollmentHistory(ctx context.Context, actor identity.Actor, enrollmentID string) ([]*enrollment.Event, error) {
	if actor.IsAnonymous() {
		return nil, authz.ErrUnauthenticated
	}
	e, err := s.ledger.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if e.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: enrollment %s", authz.ErrNotOwner, enrollmentID)
	}
	return s.ledger.History(ctx, enrollmentID)
}

// CourseStats returns enrollment counts and revenue to the course owner
func (s *Service) CourseStats(ctx context.Context, actor identity.Actor, courseID string) (*enrollment.Stats, error) {
	if err := s.gate.Require(ctx, actor, authz.OpViewStats, gate.Course(courseID)); err != nil {
		return nil, err
	}
	return s.ledger.CourseStats(ctx, courseID)
}

// CompleteClass records that the acting user finished a class they can read
func (s *Service) CompleteClass(ctx context.Context, actor identity.Actor, classID string) error {
	if actor.IsAnonymous() {
		return authz.ErrUnauthenticated
	}
	if err := s.gate.Require(ctx, actor, authz.OpRead, gate.Class(classID)); err != nil {
		return err
	}
	return s.ledger.RecordClassCompletion(ctx, actor.UserID, classID)
}

// CourseProgress returns the acting user's completed classes in a course
func (s *Service) CourseProgress(ctx context.Context, actor identity.Actor, courseID string) (*Progress, error) {
	if actor.IsAnonymous() {
		return nil, authz.ErrUnauthenticated
	}
	if err := s.gate.Require(ctx, actor, authz.OpRead, gate.Course(courseID)); err != nil {
		return nil, err
	}
	c, err := s.content.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	done, err := s.ledger.CompletedClasses(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, err
	}
	return &Progress{CourseID: courseID, CompletedClasses: done, TotalClasses: len(c.ClassIDs)}, nil
}
