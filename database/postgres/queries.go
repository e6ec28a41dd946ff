package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX matches both *sql.DB and *sql.Tx so queries compose into transactions.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) withTx(ctx context.Context, fn func(*Queries) error) error {
	db, ok := q.db.(*sql.DB)
	if !ok {
		return fn(q)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	if err := fn(New(tx)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

const getCurrentQuestion = `
SELECT current_question FROM user_progress WHERE username = $1
`

const initUserProgress = `
INSERT INTO user_progress (username, current_question)
VALUES ($1, 0)
ON CONFLICT (username) DO NOTHING
`

// GetCurrentQuestion returns the user's current absolute question index,
// creating the progress row at 0 on first use.
func (q *Queries) GetCurrentQuestion(ctx context.Context, username string) (int, error) {
	var current int
	err := q.db.QueryRowContext(ctx, getCurrentQuestion, username).Scan(&current)
	if err == sql.ErrNoRows {
		if _, err := q.db.ExecContext(ctx, initUserProgress, username); err != nil {
			return 0, fmt.Errorf("could not initialize user progress: %w", err)
		}
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("could not get current question: %w", err)
	}
	return current, nil
}

const updateCurrentQuestion = `
INSERT INTO user_progress (username, current_question)
VALUES ($1, $2)
ON CONFLICT (username) DO UPDATE SET current_question = EXCLUDED.current_question
`

func (q *Queries) UpdateCurrentQuestion(ctx context.Context, username string, question int) error {
	if _, err := q.db.ExecContext(ctx, updateCurrentQuestion, username, question); err != nil {
		return fmt.Errorf("could not update current question: %w", err)
	}
	return nil
}

const saveUserInfo = `
INSERT INTO user_info (username, question_number, info)
VALUES ($1, $2, $3)
ON CONFLICT (username, question_number) DO UPDATE SET info = EXCLUDED.info
`

func (q *Queries) SaveUserInfo(ctx context.Context, username string, questionNumber int, info string) error {
	if _, err := q.db.ExecContext(ctx, saveUserInfo, username, questionNumber, info); err != nil {
		return fmt.Errorf("could not save user info: %w", err)
	}
	return nil
}

const getUserInfo = `
SELECT info FROM user_info
WHERE username = $1 AND question_number < $2
ORDER BY question_number
`

// GetUserInfo lists the user's info answers for absolute indices below the
// given bound, in index order.
func (q *Queries) GetUserInfo(ctx context.Context, username string, below int) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, getUserInfo, username, below)
	if err != nil {
		return nil, fmt.Errorf("could not get user info: %w", err)
	}
	defer rows.Close()

	var infos []string
	for rows.Next() {
		var info string
		if err := rows.Scan(&info); err != nil {
			return nil, fmt.Errorf("could not scan user info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

const saveUserResponse = `
INSERT INTO user_responses (username, question_number, response)
VALUES ($1, $2, $3)
ON CONFLICT (username, question_number) DO UPDATE SET response = EXCLUDED.response
`

func (q *Queries) SaveUserResponse(ctx context.Context, username string, responseNumber int, response string) error {
	if _, err := q.db.ExecContext(ctx, saveUserResponse, username, responseNumber, response); err != nil {
		return fmt.Errorf("could not save user response: %w", err)
	}
	return nil
}

const getAllUserResponses = `
SELECT response FROM user_responses
WHERE username = $1
ORDER BY question_number
`

// GetAllUserResponses lists the user's essay and audio answers in local index
// order (essays first, then audio transcripts).
func (q *Queries) GetAllUserResponses(ctx context.Context, username string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, getAllUserResponses, username)
	if err != nil {
		return nil, fmt.Errorf("could not get user responses: %w", err)
	}
	defer rows.Close()

	var responses []string
	for rows.Next() {
		var response string
		if err := rows.Scan(&response); err != nil {
			return nil, fmt.Errorf("could not scan user response: %w", err)
		}
		responses = append(responses, response)
	}
	return responses, rows.Err()
}

const saveChatID = `
INSERT INTO user_progress (username, chat_id, current_question)
VALUES ($1, $2, 0)
ON CONFLICT (username) DO UPDATE SET chat_id = EXCLUDED.chat_id
`

// SaveChatID remembers where to reach the user outside a live update, e.g.
// when a payment webhook lands.
func (q *Queries) SaveChatID(ctx context.Context, username string, chatID int64) error {
	if _, err := q.db.ExecContext(ctx, saveChatID, username, chatID); err != nil {
		return fmt.Errorf("could not save chat id: %w", err)
	}
	return nil
}

const getChatID = `
SELECT chat_id FROM user_progress WHERE username = $1
`

func (q *Queries) GetChatID(ctx context.Context, username string) (int64, error) {
	var chatID int64
	err := q.db.QueryRowContext(ctx, getChatID, username).Scan(&chatID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("no chat known for user %s", username)
	}
	if err != nil {
		return 0, fmt.Errorf("could not get chat id: %w", err)
	}
	return chatID, nil
}

const checkPaymentStatus = `
SELECT has_paid FROM user_payments WHERE username = $1
`

func (q *Queries) CheckPaymentStatus(ctx context.Context, username string) (bool, error) {
	var hasPaid bool
	err := q.db.QueryRowContext(ctx, checkPaymentStatus, username).Scan(&hasPaid)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not check payment status: %w", err)
	}
	return hasPaid, nil
}

const updatePaymentStatus = `
INSERT INTO user_payments (username, has_paid)
VALUES ($1, $2)
ON CONFLICT (username) DO UPDATE SET has_paid = EXCLUDED.has_paid, payment_date = NOW()
`

func (q *Queries) UpdatePaymentStatus(ctx context.Context, username string, hasPaid bool) error {
	if _, err := q.db.ExecContext(ctx, updatePaymentStatus, username, hasPaid); err != nil {
		return fmt.Errorf("could not update payment status: %w", err)
	}
	return nil
}

const checkReportSent = `
SELECT mini_report_sent, full_report_sent FROM user_reports WHERE username = $1
`

// CheckReportSent reports which of the two reports have been delivered.
func (q *Queries) CheckReportSent(ctx context.Context, username string) (miniSent bool, fullSent bool, err error) {
	err = q.db.QueryRowContext(ctx, checkReportSent, username).Scan(&miniSent, &fullSent)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("could not check report status: %w", err)
	}
	return miniSent, fullSent, nil
}

const markMiniReportSent = `
INSERT INTO user_reports (username, mini_report_sent)
VALUES ($1, TRUE)
ON CONFLICT (username) DO UPDATE SET mini_report_sent = TRUE
`

func (q *Queries) MarkMiniReportSent(ctx context.Context, username string) error {
	if _, err := q.db.ExecContext(ctx, markMiniReportSent, username); err != nil {
		return fmt.Errorf("could not mark mini report sent: %w", err)
	}
	return nil
}

const markFullReportSent = `
INSERT INTO user_reports (username, full_report_sent)
VALUES ($1, TRUE)
ON CONFLICT (username) DO UPDATE SET full_report_sent = TRUE
`

func (q *Queries) MarkFullReportSent(ctx context.Context, username string) error {
	if _, err := q.db.ExecContext(ctx, markFullReportSent, username); err != nil {
		return fmt.Errorf("could not mark full report sent: %w", err)
	}
	return nil
}
