package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
	"github.com/punchamoorthee/voucherdesk/internal/form"
	"github.com/punchamoorthee/voucherdesk/internal/ledger"
	"github.com/punchamoorthee/voucherdesk/internal/models"
	"github.com/punchamoorthee/voucherdesk/internal/voucher"
)

func (h *Handler) OpenDraft(w http.ResponseWriter, r *http.Request) {
	var req models.OpenDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	d, err := h.forms.Open(r.Context(), voucher.Kind(req.Kind), req.VoucherID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.drafts.Put(d)
	h.log.Info("draft opened",
		zap.String("draft", d.ID),
		zap.String("kind", req.Kind),
		zap.String("mode", d.Mode.String()),
		zap.Bool("pending", d.Pending != nil))

	w.Header().Set("Location", fmt.Sprintf("/api/v1/drafts/%s", d.ID))
	respondJSON(w, http.StatusCreated, draftView(d))
}

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	h.withDraft(w, r, http.StatusOK, func(d *voucher.Draft) error { return nil })
}

func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if _, err := h.session.Require(); err != nil {
		h.fail(w, err)
		return
	}
	if !h.drafts.Delete(mux.Vars(r)["id"]) {
		respondError(w, http.StatusNotFound, "Draft not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateHeader(w http.ResponseWriter, r *http.Request) {
	var req models.HeaderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	h.withDraft(w, r, http.StatusOK, func(d *voucher.Draft) error {
		return applyHeader(&d.Header, req)
	})
}

func applyHeader(hdr *voucher.Header, req models.HeaderRequest) error {
	next := *hdr
	if req.EntryDate != nil {
		t, err := time.Parse(voucher.DateLayout, strings.TrimSpace(*req.EntryDate))
		if err != nil {
			return ledger.ValidationError{Field: "entry_date", Msg: "entry date must be YYYY-MM-DD"}
		}
		next.EntryDate = t
	}
	if req.GLDate != nil {
		t, err := time.Parse(voucher.DateLayout, strings.TrimSpace(*req.GLDate))
		if err != nil {
			return ledger.ValidationError{Field: "gl_date", Msg: "GL date must be YYYY-MM-DD"}
		}
		next.GLDate = t
	}
	if req.Description != nil {
		next.Description = *req.Description
	}
	if req.PartyID != nil {
		next.PartyID = strings.TrimSpace(*req.PartyID)
	}
	if req.CashAccount != nil {
		next.CashAccount = strings.TrimSpace(*req.CashAccount)
	}
	if req.Project != nil {
		next.Project = strings.TrimSpace(*req.Project)
	}
	if req.DocCount != nil {
		if *req.DocCount < 0 {
			return ledger.ValidationError{Field: "doc_count", Msg: "supporting documents count is invalid"}
		}
		next.DocCount = *req.DocCount
	}
	if req.Amount != nil {
		if req.Amount.IsNegative() {
			return ledger.ErrNegativeAmount
		}
		next.Amount = req.Amount.Decimal
	}
	*hdr = next
	return nil
}

func (h *Handler) AddRow(w http.ResponseWriter, r *http.Request) {
	var req models.RowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	h.withDraft(w, r, http.StatusCreated, func(d *voucher.Draft) error {
		side := ledger.Side(strings.ToLower(strings.TrimSpace(req.Side)))
		if side == "" && d.Config.SingleSided() {
			side = d.Config.Side
		}
		if side != "" && !side.Valid() {
			return ledger.ErrInvalidSide
		}
		if req.Amount.IsNegative() {
			return ledger.ErrNegativeAmount
		}
		if err := d.CheckSide(side, req.Amount.Decimal); err != nil {
			return err
		}
		code := strings.TrimSpace(req.AccountCode)
		if _, ok := d.Rows.AddRow(code, particulars(d, code, req.Particulars), side, req.Amount.Decimal); !ok {
			return ledger.ErrMissingAcct
		}
		return nil
	})
}

func (h *Handler) SetRowAccount(w http.ResponseWriter, r *http.Request) {
	var req models.RowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	rowID := mux.Vars(r)["rowID"]
	h.withDraft(w, r, http.StatusOK, func(d *voucher.Draft) error {
		code := strings.TrimSpace(req.AccountCode)
		return d.Rows.SetAccount(rowID, code, particulars(d, code, req.Particulars))
	})
}

func (h *Handler) SetDebit(w http.ResponseWriter, r *http.Request) {
	h.setAmount(w, r, ledger.Debit)
}

func (h *Handler) SetCredit(w http.ResponseWriter, r *http.Request) {
	h.setAmount(w, r, ledger.Credit)
}

func (h *Handler) setAmount(w http.ResponseWriter, r *http.Request, side ledger.Side) {
	var req models.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	rowID := mux.Vars(r)["rowID"]
	h.withDraft(w, r, http.StatusOK, func(d *voucher.Draft) error {
		if err := d.CheckSide(side, req.Amount.Decimal); err != nil {
			return err
		}
		return d.Rows.Set(rowID, side, req.Amount.Decimal)
	})
}

func (h *Handler) RemoveRow(w http.ResponseWriter, r *http.Request) {
	rowID := mux.Vars(r)["rowID"]
	h.withDraft(w, r, http.StatusOK, func(d *voucher.Draft) error {
		return d.Rows.Remove(rowID)
	})
}

func (h *Handler) ResumeDraft(w http.ResponseWriter, r *http.Request) {
	h.withDraft(w, r, http.StatusOK, func(d *voucher.Draft) error {
		return h.forms.Resume(r.Context(), d)
	})
}

func (h *Handler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	var resp models.SubmitResponse
	err := h.drafts.With(mux.Vars(r)["id"], func(d *voucher.Draft) error {
		res, err := h.forms.Submit(r.Context(), d)
		if err != nil {
			return err
		}
		resp = models.SubmitResponse{Result: res, Draft: draftView(d)}
		return nil
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// withDraft applies fn under the draft lock and answers with the draft view.
// Drafts are only reachable while signed in.
func (h *Handler) withDraft(w http.ResponseWriter, r *http.Request, code int, fn func(d *voucher.Draft) error) {
	if _, err := h.session.Require(); err != nil {
		h.fail(w, err)
		return
	}
	var view models.DraftView
	err := h.drafts.With(mux.Vars(r)["id"], func(d *voucher.Draft) error {
		if err := fn(d); err != nil {
			return err
		}
		view = draftView(d)
		return nil
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, code, view)
}

// particulars keeps a typed label and otherwise takes the account name.
func particulars(d *voucher.Draft, code, typed string) string {
	if typed = strings.TrimSpace(typed); typed != "" {
		return typed
	}
	name, _ := d.Particulars(code)
	return name
}

func draftView(d *voucher.Draft) models.DraftView {
	debit, credit := d.Totals()
	v := models.DraftView{
		ID:         d.ID,
		Kind:       string(d.Kind()),
		Title:      d.Config.Title,
		Mode:       d.Mode.String(),
		ExistingID: d.Mode.ExistingID,
		Pending:    d.Pending != nil,
		Header: models.HeaderView{
			EntryDate:   d.Header.EntryDate.Format(voucher.DateLayout),
			GLDate:      d.Header.GLDate.Format(voucher.DateLayout),
			Description: d.Header.Description,
			PartyID:     d.Header.PartyID,
			CashAccount: d.Header.CashAccount,
			Project:     d.Header.Project,
			DocCount:    d.Header.DocCount,
			Amount:      d.Header.Amount,
		},
		DebitTotal:  debit,
		CreditTotal: credit,
		Balanced:    debit.Equal(credit),
		Lookups:     make(map[domain.LookupKind][]domain.LookupRecord, len(d.Lookups)),
	}
	for kind, records := range d.Lookups {
		v.Lookups[kind] = records
	}
	for _, row := range d.Rows.Snapshot() {
		v.Rows = append(v.Rows, models.RowView{
			ID:          row.ID,
			AccountCode: row.AccountCode,
			Particulars: row.Particulars,
			Debit:       row.Debit,
			Credit:      row.Credit,
			State:       row.State().String(),
			Remote:      row.Remote,
		})
	}
	if v.Rows == nil {
		v.Rows = []models.RowView{}
	}
	switch err := d.Validate(); {
	case d.Pending != nil:
		v.Reason = form.ErrStillLoading.Msg
	case err != nil:
		v.Reason = err.Error()
	default:
		v.CanSubmit = true
	}
	return v
}
