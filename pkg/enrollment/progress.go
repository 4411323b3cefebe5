package enrollment

import (
	"context"
	"fmt"
)

// RecordClassCompletion marks a class as completed by a user. Completing a
// class twice keeps the first completion time.
func (l *Ledger) RecordClassCompletion(ctx context.Context, userID, classID string) error {
	if userID == "" || classID == "" {
		return fmt.Errorf("%w: user and class are required", ErrInvalidRequest)
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO class_progress (user_id, class_id, completed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, class_id) DO NOTHING
	`, userID, classID, l.now())
	if err != nil {
		return fmt.Errorf("failed to record class completion: %w", err)
	}
	return nil
}

// CompletedClasses returns the ids of the course's classes the user has
// completed, in course order
func (l *Ledger) CompletedClasses(ctx context.Context, userID, courseID string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT p.class_id
		FROM class_progress p
		JOIN classes c ON c.id = p.class_id
		WHERE p.user_id = $1 AND c.course_id = $2
		ORDER BY c.position
	`, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed classes: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan class id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
