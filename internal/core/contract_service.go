package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ContractService is the persistence sink for finalized proposals.
// It owns contract numbering; the pipeline never generates one.
type ContractService interface {
	// SaveContract persists the record atomically. Submitting the same
	// IdempotencyKey twice returns the contract saved the first time.
	SaveContract(ctx context.Context, rec ContractRecord) (*Contract, error)
	GetContract(ctx context.Context, contractID int) (*Contract, error)
	GetContractByNumber(ctx context.Context, companyCode, contractNumber string) (*Contract, error)
	ListContracts(ctx context.Context, companyCode string) ([]Contract, error)
}

type contractService struct {
	pool *pgxpool.Pool
}

func NewContractService(pool *pgxpool.Pool) ContractService {
	return &contractService{pool: pool}
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgxRowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx (for Query).
type pgxRowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// resolveCompanyID looks up the internal company ID from a company code.
func resolveCompanyID(ctx context.Context, q pgxQuerier, companyCode string) (int, error) {
	var id int
	err := q.QueryRow(ctx, "SELECT id FROM companies WHERE company_code = $1", companyCode).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrCompanyNotFound, companyCode)
		}
		return 0, fmt.Errorf("failed to resolve company %s: %w", companyCode, err)
	}
	return id, nil
}

func (s *contractService) SaveContract(ctx context.Context, rec ContractRecord) (*Contract, error) {
	if len(rec.Lines) == 0 {
		return nil, ErrEmptyProposal
	}
	if rec.IdempotencyKey == "" {
		return nil, fmt.Errorf("contract record must carry an idempotency key")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	companyID, err := resolveCompanyID(ctx, tx, rec.CompanyCode)
	if err != nil {
		return nil, err
	}

	// A resubmitted draft returns the contract it already produced.
	var existingID int
	err = tx.QueryRow(ctx,
		"SELECT id FROM quote_contracts WHERE company_id = $1 AND idempotency_key = $2",
		companyID, rec.IdempotencyKey,
	).Scan(&existingID)
	if err == nil {
		return s.GetContract(ctx, existingID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	// Gapless per-company contract number; the row lock serialises concurrent finalizations.
	var next int64
	err = tx.QueryRow(ctx, `
		INSERT INTO quote_contract_sequences (company_id, last_number)
		VALUES ($1, 1)
		ON CONFLICT (company_id) DO UPDATE SET last_number = quote_contract_sequences.last_number + 1
		RETURNING last_number
	`, companyID).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate contract number: %w", err)
	}
	contractNumber := fmt.Sprintf("CT-%06d", next)

	var contractID int
	err = tx.QueryRow(ctx, `
		INSERT INTO quote_contracts (company_id, contract_number, idempotency_key, client_id, operator_id,
		                             proposal_total, discount_value, final_value,
		                             referral_party_id, referral_percent, referral_payout,
		                             interest_rate, financing_cost, net_commission_base, as_of)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12, $13, $14, $15)
		RETURNING id
	`, companyID, contractNumber, rec.IdempotencyKey, rec.ClientID, rec.OperatorID,
		rec.ProposalTotal, rec.DiscountValue, rec.FinalValue,
		rec.ReferralPartyID, rec.ReferralPercent, rec.ReferralPayout,
		rec.InterestRate, rec.FinancingCost, rec.NetCommissionBase, rec.AsOf,
	).Scan(&contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert contract: %w", err)
	}

	for i, line := range rec.Lines {
		var envID int
		err = tx.QueryRow(ctx, `
			INSERT INTO quote_contract_environments (contract_id, line_number, environment_name, cost_total, sale_value)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, contractID, i+1, line.EnvironmentName, line.CostTotal, line.SaleValue).Scan(&envID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert environment %q: %w", line.EnvironmentName, err)
		}

		for j, item := range line.Detail {
			_, err = tx.Exec(ctx, `
				INSERT INTO quote_contract_items (environment_id, line_number, description, category, quantity, unit_price, total_price)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, envID, j+1, item.Description, item.Category, item.Quantity, item.UnitPrice, item.TotalPrice)
			if err != nil {
				return nil, fmt.Errorf("failed to insert item %d of %q: %w", j+1, line.EnvironmentName, err)
			}
		}
	}

	for i, inst := range rec.Schedule {
		_, err = tx.Exec(ctx, `
			INSERT INTO quote_contract_installments (contract_id, line_number, method, due_date, amount, sequence_label)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, contractID, i+1, string(inst.Method), inst.DueDate, inst.Amount, inst.Sequence)
		if err != nil {
			return nil, fmt.Errorf("failed to insert installment %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit contract: %w", err)
	}

	return s.GetContract(ctx, contractID)
}

const contractColumns = `
	qc.id, qc.contract_number, c.company_code, qc.idempotency_key, qc.client_id, qc.operator_id,
	qc.proposal_total, qc.discount_value, qc.final_value,
	COALESCE(qc.referral_party_id, ''), qc.referral_percent, qc.referral_payout,
	qc.interest_rate, qc.financing_cost, qc.net_commission_base, qc.as_of, qc.created_at`

func scanContract(row pgx.Row, c *Contract) error {
	return row.Scan(
		&c.ID, &c.ContractNumber, &c.CompanyCode, &c.IdempotencyKey, &c.ClientID, &c.OperatorID,
		&c.ProposalTotal, &c.DiscountValue, &c.FinalValue,
		&c.ReferralPartyID, &c.ReferralPercent, &c.ReferralPayout,
		&c.InterestRate, &c.FinancingCost, &c.NetCommissionBase, &c.AsOf, &c.CreatedAt,
	)
}

func (s *contractService) GetContract(ctx context.Context, contractID int) (*Contract, error) {
	var c Contract
	err := scanContract(s.pool.QueryRow(ctx, `
		SELECT `+contractColumns+`
		FROM quote_contracts qc
		JOIN companies c ON c.id = qc.company_id
		WHERE qc.id = $1
	`, contractID), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrContractNotFound, contractID)
		}
		return nil, fmt.Errorf("failed to fetch contract %d: %w", contractID, err)
	}

	if c.Lines, err = fetchContractLines(ctx, s.pool, contractID); err != nil {
		return nil, err
	}
	if c.Schedule, err = fetchContractSchedule(ctx, s.pool, contractID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *contractService) GetContractByNumber(ctx context.Context, companyCode, contractNumber string) (*Contract, error) {
	companyID, err := resolveCompanyID(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	var contractID int
	err = s.pool.QueryRow(ctx,
		"SELECT id FROM quote_contracts WHERE company_id = $1 AND contract_number = $2",
		companyID, contractNumber,
	).Scan(&contractID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s for company %s", ErrContractNotFound, contractNumber, companyCode)
		}
		return nil, fmt.Errorf("failed to lookup contract by number: %w", err)
	}
	return s.GetContract(ctx, contractID)
}

// ListContracts returns contract headers, newest first, without lines or schedule.
func (s *contractService) ListContracts(ctx context.Context, companyCode string) ([]Contract, error) {
	companyID, err := resolveCompanyID(ctx, s.pool, companyCode)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+contractColumns+`
		FROM quote_contracts qc
		JOIN companies c ON c.id = qc.company_id
		WHERE qc.company_id = $1
		ORDER BY qc.id DESC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []Contract
	for rows.Next() {
		var c Contract
		if err := scanContract(rows, &c); err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

func fetchContractLines(ctx context.Context, q pgxRowQuerier, contractID int) ([]EnvironmentQuoteLine, error) {
	rows, err := q.Query(ctx, `
		SELECT e.id, e.environment_name, e.cost_total, e.sale_value,
		       i.description, i.category, i.quantity, i.unit_price, i.total_price
		FROM quote_contract_environments e
		LEFT JOIN quote_contract_items i ON i.environment_id = e.id
		WHERE e.contract_id = $1
		ORDER BY e.line_number, i.line_number
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contract environments: %w", err)
	}
	defer rows.Close()

	var lines []EnvironmentQuoteLine
	lastEnvID := -1
	for rows.Next() {
		var (
			envID            int
			name             string
			cost, sale       decimal.Decimal
			desc, cat        *string
			qty, unit, total decimal.NullDecimal
		)
		if err := rows.Scan(&envID, &name, &cost, &sale, &desc, &cat, &qty, &unit, &total); err != nil {
			return nil, fmt.Errorf("failed to scan contract environment: %w", err)
		}
		if envID != lastEnvID {
			lines = append(lines, EnvironmentQuoteLine{
				ID:              fmt.Sprintf("%d", envID),
				EnvironmentName: name,
				CostTotal:       cost,
				SaleValue:       sale,
				Selected:        true,
			})
			lastEnvID = envID
		}
		if desc == nil {
			continue
		}
		item := AggregatedItem{
			Description: *desc,
			Quantity:    qty.Decimal,
			UnitPrice:   unit.Decimal,
			TotalPrice:  total.Decimal,
		}
		if cat != nil {
			item.Category = *cat
		}
		cur := &lines[len(lines)-1]
		cur.Detail = append(cur.Detail, item)
	}
	return lines, rows.Err()
}

func fetchContractSchedule(ctx context.Context, q pgxRowQuerier, contractID int) (PaymentSchedule, error) {
	rows, err := q.Query(ctx, `
		SELECT id, method, due_date, amount, sequence_label
		FROM quote_contract_installments
		WHERE contract_id = $1
		ORDER BY due_date, line_number
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contract installments: %w", err)
	}
	defer rows.Close()

	var schedule PaymentSchedule
	for rows.Next() {
		var (
			id     int
			method string
			inst   Installment
		)
		if err := rows.Scan(&id, &method, &inst.DueDate, &inst.Amount, &inst.Sequence); err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		inst.ID = fmt.Sprintf("%d", id)
		inst.Method = PaymentMethod(method)
		schedule = append(schedule, inst)
	}
	return schedule, rows.Err()
}
