package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/machshop/enforcement/pkg/enforcement"
	"github.com/machshop/enforcement/pkg/prereq"
)

// CreateWorkOrder inserts a new work order record.
func (s *SQLiteStore) CreateWorkOrder(ctx context.Context, wo *enforcement.WorkOrder) error {
	now := time.Now().UTC()
	if wo.CreatedAt.IsZero() {
		wo.CreatedAt = now
	}
	if wo.UpdatedAt.IsZero() {
		wo.UpdatedAt = now
	}

	query := `
		INSERT INTO work_orders (id, number, site_id, routing_id, part_number, status, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		wo.ID,
		wo.Number,
		wo.SiteID,
		wo.RoutingID,
		wo.PartNumber,
		wo.Status,
		wo.Priority,
		wo.CreatedAt,
		wo.UpdatedAt,
	)
	if err != nil {
		return enforcement.NewTransientError("failed to create work order", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(wo.ID)
	}

	return nil
}

// GetWorkOrder retrieves a work order by ID.
func (s *SQLiteStore) GetWorkOrder(ctx context.Context, id string) (*enforcement.WorkOrder, error) {
	query := `
		SELECT id, number, site_id, routing_id, part_number, status, priority, created_at, updated_at
		FROM work_orders
		WHERE id = ?
	`

	wo := &enforcement.WorkOrder{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&wo.ID,
		&wo.Number,
		&wo.SiteID,
		&wo.RoutingID,
		&wo.PartNumber,
		&wo.Status,
		&wo.Priority,
		&wo.CreatedAt,
		&wo.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, enforcement.NewNotFoundError(fmt.Sprintf("work order not found: %s", id), id)
	}
	if err != nil {
		return nil, enforcement.NewTransientError("failed to get work order", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(id)
	}

	return wo, nil
}

// UpdateWorkOrderStatus moves a work order to a new lifecycle status.
func (s *SQLiteStore) UpdateWorkOrderStatus(ctx context.Context, id string, status enforcement.WorkOrderStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE work_orders SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return enforcement.NewTransientError("failed to update work order status", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return enforcement.NewTransientError("failed to get rows affected", err)
	}
	if rows == 0 {
		return enforcement.NewNotFoundError(fmt.Sprintf("work order not found: %s", id), id)
	}

	return nil
}

// CreateOperation inserts a new operation instance.
func (s *SQLiteStore) CreateOperation(ctx context.Context, op *enforcement.Operation) error {
	now := time.Now().UTC()
	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	if op.UpdatedAt.IsZero() {
		op.UpdatedAt = now
	}

	query := `
		INSERT INTO operations (id, work_order_id, routing_step_id, name, sequence, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		op.ID,
		op.WorkOrderID,
		op.RoutingStepID,
		op.Name,
		op.Sequence,
		op.Status,
		op.CreatedAt,
		op.UpdatedAt,
	)
	if err != nil {
		return enforcement.NewTransientError("failed to create operation", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(op.ID)
	}

	return nil
}

// GetOperation retrieves an operation instance by ID.
func (s *SQLiteStore) GetOperation(ctx context.Context, id string) (*enforcement.Operation, error) {
	query := `
		SELECT id, work_order_id, routing_step_id, name, sequence, status, created_at, updated_at
		FROM operations
		WHERE id = ?
	`

	op := &enforcement.Operation{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&op.ID,
		&op.WorkOrderID,
		&op.RoutingStepID,
		&op.Name,
		&op.Sequence,
		&op.Status,
		&op.CreatedAt,
		&op.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, enforcement.NewNotFoundError(fmt.Sprintf("operation not found: %s", id), id)
	}
	if err != nil {
		return nil, enforcement.NewTransientError("failed to get operation", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(id)
	}

	return op, nil
}

// ListOperationsByWorkOrder returns every operation instance of a work
// order ordered by sequence.
func (s *SQLiteStore) ListOperationsByWorkOrder(ctx context.Context, workOrderID string) ([]*enforcement.Operation, error) {
	query := `
		SELECT id, work_order_id, routing_step_id, name, sequence, status, created_at, updated_at
		FROM operations
		WHERE work_order_id = ?
		ORDER BY sequence ASC
	`

	rows, err := s.db.QueryContext(ctx, query, workOrderID)
	if err != nil {
		return nil, enforcement.NewTransientError("failed to list operations", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(workOrderID)
	}
	defer rows.Close()

	ops := []*enforcement.Operation{}
	for rows.Next() {
		op := &enforcement.Operation{}
		err := rows.Scan(
			&op.ID,
			&op.WorkOrderID,
			&op.RoutingStepID,
			&op.Name,
			&op.Sequence,
			&op.Status,
			&op.CreatedAt,
			&op.UpdatedAt,
		)
		if err != nil {
			return nil, enforcement.NewTransientError("failed to scan operation", err)
		}
		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, enforcement.NewTransientError("failed to iterate operations", err)
	}

	return ops, nil
}

// UpdateOperationStatus moves an operation to a new lifecycle status.
// Callers are expected to consult the decision engine first; the store
// itself does not re-check enforcement.
func (s *SQLiteStore) UpdateOperationStatus(ctx context.Context, id string, status enforcement.OperationStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE operations SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return enforcement.NewTransientError("failed to update operation status", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return enforcement.NewTransientError("failed to get rows affected", err)
	}
	if rows == 0 {
		return enforcement.NewNotFoundError(fmt.Sprintf("operation not found: %s", id), id)
	}

	return nil
}

// CreateDependency declares a prerequisite edge between two routing steps.
func (s *SQLiteStore) CreateDependency(ctx context.Context, edge prereq.DependencyEdge) error {
	if edge.Type == "" {
		edge.Type = enforcement.DependencySequential
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operation_dependencies (routing_step_id, prerequisite_routing_step_id, dependency_type) VALUES (?, ?, ?)`,
		edge.RoutingStepID, edge.PrerequisiteRoutingStepID, edge.Type,
	)
	if err != nil {
		return enforcement.NewTransientError("failed to create dependency", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(edge.RoutingStepID)
	}

	return nil
}

// ListDependencies returns the prerequisite edges whose dependent side is
// the given routing step.
func (s *SQLiteStore) ListDependencies(ctx context.Context, routingStepID string) ([]prereq.DependencyEdge, error) {
	query := `
		SELECT routing_step_id, prerequisite_routing_step_id, dependency_type
		FROM operation_dependencies
		WHERE routing_step_id = ?
	`

	rows, err := s.db.QueryContext(ctx, query, routingStepID)
	if err != nil {
		return nil, enforcement.NewTransientError("failed to list dependencies", err).
			WithCode(enforcement.ErrCodeStoreFailed).WithEntity(routingStepID)
	}
	defer rows.Close()

	edges := []prereq.DependencyEdge{}
	for rows.Next() {
		var edge prereq.DependencyEdge
		if err := rows.Scan(&edge.RoutingStepID, &edge.PrerequisiteRoutingStepID, &edge.Type); err != nil {
			return nil, enforcement.NewTransientError("failed to scan dependency", err)
		}
		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, enforcement.NewTransientError("failed to iterate dependencies", err)
	}

	return edges, nil
}
