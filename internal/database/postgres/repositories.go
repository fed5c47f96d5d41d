package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MinerRepository handles miner-related database operations
type MinerRepository struct {
	db *sql.DB
}

// NewMinerRepository creates a new miner repository
func NewMinerRepository(db *sql.DB) *MinerRepository {
	return &MinerRepository{db: db}
}

// CreateMiner creates a new miner
func (r *MinerRepository) CreateMiner(ctx context.Context, miner *Miner) error {
	query := `
		INSERT INTO miners (address, username, email, hashed_password, minimum_payout, payout_address, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		miner.Address, miner.Username, miner.Email, miner.HashedPassword,
		miner.MinimumPayout, miner.PayoutAddress, miner.IsActive, now, now,
	).Scan(&miner.ID)

	if err != nil {
		return fmt.Errorf("failed to create miner: %w", err)
	}

	miner.CreatedAt = now
	miner.UpdatedAt = now
	return nil
}

// GetMinerByAddress retrieves a miner by their payout address
func (r *MinerRepository) GetMinerByAddress(ctx context.Context, address string) (*Miner, error) {
	query := `
		SELECT id, address, username, email, hashed_password, minimum_payout, payout_address,
		       is_active, created_at, updated_at, last_seen_at
		FROM miners WHERE address = $1`

	miner := &Miner{}
	err := r.db.QueryRowContext(ctx, query, address).Scan(
		&miner.ID, &miner.Address, &miner.Username, &miner.Email, &miner.HashedPassword,
		&miner.MinimumPayout, &miner.PayoutAddress, &miner.IsActive,
		&miner.CreatedAt, &miner.UpdatedAt, &miner.LastSeenAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("miner not found")
		}
		return nil, fmt.Errorf("failed to get miner: %w", err)
	}

	return miner, nil
}

// UpdateLastSeen updates the miner's last seen timestamp
func (r *MinerRepository) UpdateLastSeen(ctx context.Context, minerID int64) error {
	query := `UPDATE miners SET last_seen_at = $1, updated_at = $2 WHERE id = $3`
	now := time.Now()

	_, err := r.db.ExecContext(ctx, query, now, now, minerID)
	if err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}

	return nil
}

// ShareRepository handles share-related database operations
type ShareRepository struct {
	db *sql.DB
}

// NewShareRepository creates a new share repository
func NewShareRepository(db *sql.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// CreateShare creates a new share record
func (r *ShareRepository) CreateShare(ctx context.Context, share *Share) error {
	query := `
		INSERT INTO shares (miner_id, worker_id, job_id, block_height, difficulty, network_difficulty,
		                   is_valid, is_block_candidate, hash, nonce, extra_nonce2, ntime, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		share.MinerID, share.WorkerID, share.JobID, share.BlockHeight,
		share.Difficulty, share.NetworkDifficulty, share.IsValid, share.IsBlockCandidate,
		share.Hash, share.Nonce, share.ExtraNonce2, share.Ntime, share.SubmittedAt,
	).Scan(&share.ID)

	if err != nil {
		return fmt.Errorf("failed to create share: %w", err)
	}

	return nil
}

// GetSharesByMiner retrieves shares for a specific miner with pagination,
// most recent first. Shares are retained for at least 24h before any
// downstream pruning job may remove them.
func (r *ShareRepository) GetSharesByMiner(ctx context.Context, minerID int64, limit, offset int) ([]*Share, error) {
	query := `
		SELECT id, miner_id, worker_id, job_id, block_height, difficulty, network_difficulty,
		       is_valid, is_block_candidate, hash, nonce, extra_nonce2, ntime, submitted_at, processed_at
		FROM shares
		WHERE miner_id = $1
		ORDER BY submitted_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, minerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query shares: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			_ = err // Ignore close errors for now
		}
	}()

	var shares []*Share
	for rows.Next() {
		share := &Share{}
		err := rows.Scan(
			&share.ID, &share.MinerID, &share.WorkerID, &share.JobID, &share.BlockHeight,
			&share.Difficulty, &share.NetworkDifficulty, &share.IsValid, &share.IsBlockCandidate,
			&share.Hash, &share.Nonce, &share.ExtraNonce2, &share.Ntime,
			&share.SubmittedAt, &share.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		shares = append(shares, share)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shares: %w", err)
	}

	return shares, nil
}

// MarkShareProcessed marks a share as processed
func (r *ShareRepository) MarkShareProcessed(ctx context.Context, shareID int64) error {
	query := `UPDATE shares SET processed_at = $1 WHERE id = $2`
	now := time.Now()

	_, err := r.db.ExecContext(ctx, query, now, shareID)
	if err != nil {
		return fmt.Errorf("failed to mark share processed: %w", err)
	}

	return nil
}

// RoundRepository handles round-related database operations: a round closes
// when a share meets network difficulty and its block is submitted.
type RoundRepository struct {
	db *sql.DB
}

// NewRoundRepository creates a new round repository
func NewRoundRepository(db *sql.DB) *RoundRepository {
	return &RoundRepository{db: db}
}

// CreateRound creates a new round record for a submitted block
func (r *RoundRepository) CreateRound(ctx context.Context, round *Round) error {
	query := `
		INSERT INTO rounds (height, hash, prev_hash, merkle_root, timestamp, bits, nonce,
		                   difficulty, share_id, miner_id, worker_id, status, confirmations, reward, found_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		round.Height, round.Hash, round.PrevHash, round.MerkleRoot, round.Timestamp,
		round.Bits, round.Nonce, round.Difficulty, round.ShareID, round.MinerID,
		round.WorkerID, round.Status, round.Confirmations, round.Reward, round.FoundAt,
	).Scan(&round.ID)

	if err != nil {
		return fmt.Errorf("failed to create round: %w", err)
	}

	return nil
}

// UpdateRoundStatus updates the confirmation status of a round's block
func (r *RoundRepository) UpdateRoundStatus(ctx context.Context, roundID int64, status string, confirmations int) error {
	query := `UPDATE rounds SET status = $1, confirmations = $2`
	args := []any{status, confirmations}

	if status == "confirmed" {
		query += `, confirmed_at = $3`
		args = append(args, time.Now())
	}

	query += ` WHERE id = $` + fmt.Sprintf("%d", len(args)+1)
	args = append(args, roundID)

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update round status: %w", err)
	}

	return nil
}

// GetRecentRounds retrieves recently closed rounds with pagination
func (r *RoundRepository) GetRecentRounds(ctx context.Context, limit, offset int) ([]*Round, error) {
	query := `
		SELECT id, height, hash, prev_hash, merkle_root, timestamp, bits, nonce,
		       difficulty, share_id, miner_id, worker_id, status, confirmations, reward, found_at, confirmed_at
		FROM rounds
		ORDER BY found_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			_ = err // Ignore close errors for now
		}
	}()

	var rounds []*Round
	for rows.Next() {
		round := &Round{}
		err := rows.Scan(
			&round.ID, &round.Height, &round.Hash, &round.PrevHash, &round.MerkleRoot,
			&round.Timestamp, &round.Bits, &round.Nonce, &round.Difficulty,
			&round.ShareID, &round.MinerID, &round.WorkerID, &round.Status,
			&round.Confirmations, &round.Reward, &round.FoundAt, &round.ConfirmedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rounds: %w", err)
	}

	return rounds, nil
}

// WorkerRepository handles worker-related database operations
type WorkerRepository struct {
	db *sql.DB
}

// NewWorkerRepository creates a new worker repository
func NewWorkerRepository(db *sql.DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

// CreateWorker creates a new worker
func (r *WorkerRepository) CreateWorker(ctx context.Context, worker *Worker) error {
	query := `
		INSERT INTO workers (miner_id, name, password, difficulty, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		worker.MinerID, worker.Name, worker.Password, worker.Difficulty,
		worker.IsActive, now, now,
	).Scan(&worker.ID)

	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	worker.CreatedAt = now
	worker.UpdatedAt = now
	return nil
}

// GetWorkerByName retrieves a worker by miner ID and name
func (r *WorkerRepository) GetWorkerByName(ctx context.Context, minerID int64, name string) (*Worker, error) {
	query := `
		SELECT id, miner_id, name, password, difficulty, is_active, created_at, updated_at, last_seen_at
		FROM workers
		WHERE miner_id = $1 AND name = $2`

	worker := &Worker{}
	err := r.db.QueryRowContext(ctx, query, minerID, name).Scan(
		&worker.ID, &worker.MinerID, &worker.Name, &worker.Password,
		&worker.Difficulty, &worker.IsActive, &worker.CreatedAt,
		&worker.UpdatedAt, &worker.LastSeenAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("worker not found")
		}
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}

	return worker, nil
}

// UpdateWorkerLastSeen updates the worker's last seen timestamp
func (r *WorkerRepository) UpdateWorkerLastSeen(ctx context.Context, workerID int64) error {
	query := `UPDATE workers SET last_seen_at = $1, updated_at = $2 WHERE id = $3`
	now := time.Now()

	_, err := r.db.ExecContext(ctx, query, now, now, workerID)
	if err != nil {
		return fmt.Errorf("failed to update worker last seen: %w", err)
	}

	return nil
}

// PaymentRepository handles payment-sweep database operations. The teacher's
// original Payout model existed but was never wired to a repository; this
// closes that gap so scheduled payout sweeps (internal/accounting.Scheduler)
// have somewhere durable to record their outcome.
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreatePayment records a new payout sweep in pending status
func (r *PaymentRepository) CreatePayment(ctx context.Context, payment *Payment) error {
	query := `
		INSERT INTO payments (miner_id, amount, address, status, round_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		payment.MinerID, payment.Amount, payment.Address, payment.Status, payment.RoundID, now,
	).Scan(&payment.ID)

	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	payment.CreatedAt = now
	return nil
}

// UpdatePaymentStatus transitions a payment's status, recording the
// broadcast transaction hash once sent and the confirmation time once
// confirmed.
func (r *PaymentRepository) UpdatePaymentStatus(ctx context.Context, paymentID int64, status string, txID *string) error {
	query := `UPDATE payments SET status = $1`
	args := []any{status}

	if txID != nil {
		query += `, tx_id = $2`
		args = append(args, *txID)
	}

	switch status {
	case "sent":
		query += fmt.Sprintf(`, sent_at = $%d`, len(args)+1)
		args = append(args, time.Now())
	case "confirmed":
		query += fmt.Sprintf(`, confirmed_at = $%d`, len(args)+1)
		args = append(args, time.Now())
	}

	query += fmt.Sprintf(` WHERE id = $%d`, len(args)+1)
	args = append(args, paymentID)

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	return nil
}

// GetPendingPayments retrieves payments awaiting broadcast
func (r *PaymentRepository) GetPendingPayments(ctx context.Context, limit int) ([]*Payment, error) {
	query := `
		SELECT id, miner_id, amount, address, tx_id, status, round_id, created_at, sent_at, confirmed_at
		FROM payments
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending payments: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			_ = err // Ignore close errors for now
		}
	}()

	var payments []*Payment
	for rows.Next() {
		payment := &Payment{}
		err := rows.Scan(
			&payment.ID, &payment.MinerID, &payment.Amount, &payment.Address, &payment.TxID,
			&payment.Status, &payment.RoundID, &payment.CreatedAt, &payment.SentAt, &payment.ConfirmedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}

// GetPaymentsByMiner retrieves a miner's payment history with pagination
func (r *PaymentRepository) GetPaymentsByMiner(ctx context.Context, minerID int64, limit, offset int) ([]*Payment, error) {
	query := `
		SELECT id, miner_id, amount, address, tx_id, status, round_id, created_at, sent_at, confirmed_at
		FROM payments
		WHERE miner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, minerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			_ = err // Ignore close errors for now
		}
	}()

	var payments []*Payment
	for rows.Next() {
		payment := &Payment{}
		err := rows.Scan(
			&payment.ID, &payment.MinerID, &payment.Amount, &payment.Address, &payment.TxID,
			&payment.Status, &payment.RoundID, &payment.CreatedAt, &payment.SentAt, &payment.ConfirmedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}
