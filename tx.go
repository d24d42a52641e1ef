package liteorm

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// TxState is the lifecycle state of a Transaction.
type TxState int

const (
	TxActive TxState = iota
	TxCommitted
	TxRolledBack
)

func (st TxState) String() string {
	switch st {
	case TxActive:
		return "active"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled back"
	}
	return "invalid"
}

// A Transaction is an explicit BEGIN ... COMMIT/ROLLBACK on a Session,
// with a stack of named savepoints.
//
// Once committed or rolled back a Transaction is finished; every further
// operation on it fails.
type Transaction struct {
	s          *Session
	state      TxState
	savepoints []string
}

// Begin starts a transaction. A session has at most one active
// transaction at a time.
func (s *Session) Begin(ctx context.Context) (*Transaction, error) {
	if err := s.checkOpen("begin"); err != nil {
		return nil, err
	}
	if s.tx != nil {
		return nil, newError(KindTransactionActive, "begin", "", "session %s already has an active transaction", s.target)
	}
	if _, err := s.exec(ctx, "begin", "", "BEGIN;", nil); err != nil {
		return nil, err
	}
	tx := &Transaction{s: s}
	s.tx = tx
	return tx, nil
}

// Transaction returns the session's active transaction, or nil.
func (s *Session) Transaction() *Transaction { return s.tx }

func (tx *Transaction) State() TxState { return tx.state }

// Savepoints returns the open savepoint names, oldest first.
func (tx *Transaction) Savepoints() []string { return slices.Clone(tx.savepoints) }

// Savepoint creates a savepoint named name and pushes it on the stack.
// Names may repeat; the most recent one wins.
func (tx *Transaction) Savepoint(ctx context.Context, name string) error {
	if err := tx.checkSavepoint("savepoint", name); err != nil {
		return err
	}
	if _, err := tx.s.exec(ctx, "savepoint", "", "SAVEPOINT "+name+";", nil); err != nil {
		return err
	}
	tx.savepoints = append(tx.savepoints, name)
	return nil
}

// RollbackTo undoes everything done since savepoint name was created.
// The savepoint stays open; savepoints created after it are gone.
func (tx *Transaction) RollbackTo(ctx context.Context, name string) error {
	i, err := tx.find("rollback to savepoint", name)
	if err != nil {
		return err
	}
	if _, err := tx.s.exec(ctx, "rollback to savepoint", "", "ROLLBACK TO SAVEPOINT "+name+";", nil); err != nil {
		tx.lost(err)
		return err
	}
	tx.savepoints = tx.savepoints[:i+1]
	return nil
}

// Release merges savepoint name, and every savepoint after it, into the
// enclosing transaction.
func (tx *Transaction) Release(ctx context.Context, name string) error {
	i, err := tx.find("release savepoint", name)
	if err != nil {
		return err
	}
	if _, err := tx.s.exec(ctx, "release savepoint", "", "RELEASE SAVEPOINT "+name+";", nil); err != nil {
		tx.lost(err)
		return err
	}
	tx.savepoints = tx.savepoints[:i]
	return nil
}

// Commit makes the transaction's changes durable. If COMMIT fails the
// transaction stays active and may still be rolled back, unless the engine
// had already ended it.
func (tx *Transaction) Commit(ctx context.Context) error {
	if tx.state != TxActive {
		return newError(KindTransactionDone, "commit", "", "transaction is %s", tx.state)
	}
	if _, err := tx.s.exec(ctx, "commit", "", "COMMIT;", nil); err != nil {
		tx.lost(err)
		return err
	}
	tx.finish(TxCommitted)
	return nil
}

// Rollback discards the transaction's changes. The transaction is finished
// even when ROLLBACK itself fails. A transaction the engine already ended
// rolls back without error.
func (tx *Transaction) Rollback(ctx context.Context) error {
	if tx.state != TxActive {
		return newError(KindTransactionDone, "rollback", "", "transaction is %s", tx.state)
	}
	_, err := tx.s.exec(ctx, "rollback", "", "ROLLBACK;", nil)
	tx.finish(TxRolledBack)
	if isNoTransaction(err) {
		return nil
	}
	return err
}

// lost finishes tx when err shows the engine has already ended the
// transaction, as an INSERT OR ROLLBACK conflict does.
func (tx *Transaction) lost(err error) {
	if tx.state == TxActive && isNoTransaction(err) {
		tx.finish(TxRolledBack)
	}
}

// isNoTransaction reports whether err is the engine refusing a transaction
// statement because no transaction is open.
func isNoTransaction(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no transaction is active") || strings.Contains(msg, "no such savepoint")
}

func (tx *Transaction) finish(st TxState) {
	tx.state = st
	tx.savepoints = nil
	if tx.s.tx == tx {
		tx.s.tx = nil
	}
}

func (tx *Transaction) checkSavepoint(op, name string) error {
	if tx.state != TxActive {
		return newError(KindInvalidSavepointOperation, op, "", "transaction is %s", tx.state)
	}
	if !isPlainIdent(name) {
		return newError(KindInvalidSavepointOperation, op, "", "invalid savepoint name %q", name)
	}
	return nil
}

func (tx *Transaction) find(op, name string) (int, error) {
	if err := tx.checkSavepoint(op, name); err != nil {
		return 0, err
	}
	for i := len(tx.savepoints) - 1; i >= 0; i-- {
		if tx.savepoints[i] == name {
			return i, nil
		}
	}
	return 0, newError(KindInvalidSavepointOperation, op, "", "no savepoint %q", name)
}

// RunInTransaction runs fn inside a transaction: it commits when fn returns
// nil and rolls back otherwise. Called while a transaction is already
// active, it runs fn inside a savepoint of that transaction instead.
func (s *Session) RunInTransaction(ctx context.Context, fn func(*Session) error) error {
	return s.runInTx(ctx, func() error { return fn(s) })
}

func (s *Session) runInTx(ctx context.Context, fn func() error) error {
	// Cleanup must run even if ctx was cancelled mid-operation.
	cleanup := context.WithoutCancel(ctx)

	if s.tx == nil {
		tx, err := s.Begin(ctx)
		if err != nil {
			return err
		}
		err = fn()
		if err == nil {
			// A cancelled caller gets no commit, even if fn succeeded.
			err = ctx.Err()
		}
		if err == nil {
			if err = tx.Commit(cleanup); err == nil {
				return nil
			}
		}
		if tx.state == TxActive {
			if rerr := tx.Rollback(cleanup); rerr != nil {
				s.logger.WarnContext(ctx, "liteorm rollback failed", "error", rerr)
			}
		}
		return err
	}

	tx := s.tx
	s.savepointSeq++
	name := fmt.Sprintf("liteorm_sp_%d", s.savepointSeq)
	if err := tx.Savepoint(ctx, name); err != nil {
		return err
	}
	err := fn()
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		if err = tx.Release(cleanup, name); err == nil {
			return nil
		}
	}
	if tx.state == TxActive {
		if rerr := tx.RollbackTo(cleanup, name); rerr != nil {
			s.logger.WarnContext(ctx, "liteorm rollback to savepoint failed", "savepoint", name, "error", rerr)
		} else if rerr := tx.Release(cleanup, name); rerr != nil {
			s.logger.WarnContext(ctx, "liteorm release savepoint failed", "savepoint", name, "error", rerr)
		}
	}
	return err
}
