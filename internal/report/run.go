package report

import (
	"database/sql"
	"fmt"
)

// CommitRun inserts a run with all of its diagnostics and signatures in a
// single transaction. IDs are assigned on the passed values.
func (s *Store) CommitRun(run *Run, diagnostics []Diagnostic, signatures []Signature) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("commit run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO runs (workspace, started_at, roots, files) VALUES (?, ?, ?, ?)",
		run.Workspace, run.StartedAt, run.Roots, run.Files,
	)
	if err != nil {
		return 0, fmt.Errorf("commit run: insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("commit run: last insert id: %w", err)
	}
	run.ID = runID

	for i := range diagnostics {
		d := &diagnostics[i]
		res, err := tx.Exec(
			`INSERT INTO diagnostics (run_id, document, start_offset, end_offset, line, col, severity, message)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, d.Document, d.Start, d.End, d.Line, d.Col, d.Severity, d.Message,
		)
		if err != nil {
			return 0, fmt.Errorf("commit run: diagnostic in %s: %w", d.Document, err)
		}
		if d.ID, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("commit run: last insert id: %w", err)
		}
		d.RunID = runID
	}

	for i := range signatures {
		sig := &signatures[i]
		if err := insertSignatureTx(tx, runID, sig); err != nil {
			return 0, fmt.Errorf("commit run: signature %q: %w", sig.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: commit: %w", err)
	}
	return runID, nil
}

func insertSignatureTx(tx *sql.Tx, runID int64, sig *Signature) error {
	res, err := tx.Exec(
		"INSERT INTO signatures (run_id, name, path, document, has_params, return_type) VALUES (?, ?, ?, ?, ?, ?)",
		runID, sig.Name, sig.Path, sig.Document, boolToInt(sig.HasParams), sig.Return,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sig.ID = id
	sig.RunID = runID
	for pos, p := range sig.Params {
		if _, err := tx.Exec(
			"INSERT INTO signature_params (signature_id, position, name, type, optional) VALUES (?, ?, ?, ?, ?)",
			id, pos, p.Name, p.Type, boolToInt(p.Optional),
		); err != nil {
			return fmt.Errorf("param %q: %w", p.Name, err)
		}
	}
	return nil
}

// LatestRun returns the most recent run, or nil when the report is empty.
func (s *Store) LatestRun() (*Run, error) {
	r := &Run{}
	err := s.db.QueryRow(
		"SELECT id, workspace, started_at, roots, files FROM runs ORDER BY id DESC LIMIT 1",
	).Scan(&r.ID, &r.Workspace, &r.StartedAt, &r.Roots, &r.Files)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

// DiagnosticsByRun returns a run's diagnostics in insertion order.
func (s *Store) DiagnosticsByRun(runID int64) ([]Diagnostic, error) {
	return s.queryDiagnostics(
		`SELECT id, run_id, document, start_offset, end_offset, line, col, severity, message
		 FROM diagnostics WHERE run_id = ? ORDER BY id`, runID)
}

// DiagnosticsByDocument returns a run's diagnostics for one document.
func (s *Store) DiagnosticsByDocument(runID int64, document string) ([]Diagnostic, error) {
	return s.queryDiagnostics(
		`SELECT id, run_id, document, start_offset, end_offset, line, col, severity, message
		 FROM diagnostics WHERE run_id = ? AND document = ? ORDER BY id`, runID, document)
}

func (s *Store) queryDiagnostics(query string, args ...any) ([]Diagnostic, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	var out []Diagnostic
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.ID, &d.RunID, &d.Document, &d.Start, &d.End, &d.Line, &d.Col, &d.Severity, &d.Message); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SignaturesByRun returns a run's signatures ordered by name, each with its
// parameters.
func (s *Store) SignaturesByRun(runID int64) ([]Signature, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, name, path, document, has_params, return_type
		 FROM signatures WHERE run_id = ? ORDER BY name COLLATE NOCASE`, runID)
	if err != nil {
		return nil, fmt.Errorf("query signatures: %w", err)
	}
	var out []Signature
	for rows.Next() {
		var sig Signature
		var hasParams int
		if err := rows.Scan(&sig.ID, &sig.RunID, &sig.Name, &sig.Path, &sig.Document, &hasParams, &sig.Return); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		sig.HasParams = hasParams != 0
		out = append(out, sig)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query signatures: %w", err)
	}

	for i := range out {
		params, err := s.paramsBySignature(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Params = params
	}
	return out, nil
}

func (s *Store) paramsBySignature(signatureID int64) ([]Param, error) {
	rows, err := s.db.Query(
		"SELECT name, type, optional FROM signature_params WHERE signature_id = ? ORDER BY position", signatureID)
	if err != nil {
		return nil, fmt.Errorf("query params: %w", err)
	}
	defer rows.Close()

	var out []Param
	for rows.Next() {
		var p Param
		var optional int
		if err := rows.Scan(&p.Name, &p.Type, &optional); err != nil {
			return nil, fmt.Errorf("scan param: %w", err)
		}
		p.Optional = optional != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
