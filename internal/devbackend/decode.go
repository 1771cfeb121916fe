package devbackend

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/voucherdesk/internal/ledger"
	"github.com/punchamoorthee/voucherdesk/internal/service"
	"github.com/punchamoorthee/voucherdesk/internal/voucher"
)

// badRequest is a malformed payload, reported with status 400.
type badRequest string

func (b badRequest) Error() string { return string(b) }

func decodeCreate(cfg voucher.Config, body io.Reader) (service.VoucherInput, error) {
	if cfg.Shape == voucher.Structured {
		var req voucher.StructuredCreate
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return service.VoucherInput{}, badRequest("Invalid request body")
		}
		in, err := headerInput(cfg, req.PayloadHeader)
		if err != nil {
			return service.VoucherInput{}, err
		}
		in.Total = decimal.Zero
		for _, d := range req.Details {
			code, particulars := voucher.SplitCode(d.Code)
			in.Lines = append(in.Lines, service.Line{Code: code, Description: particulars, Debit: d.Debit, Credit: d.Credit})
			in.Total = in.Total.Add(d.Debit)
		}
		return in, nil
	}

	var req voucher.FlatCreate
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return service.VoucherInput{}, badRequest("Invalid request body")
	}
	if len(req.AccountCode) != len(req.Amount) {
		return service.VoucherInput{}, badRequest("account_code and amount must have the same length")
	}
	in, err := headerInput(cfg, req.PayloadHeader)
	if err != nil {
		return service.VoucherInput{}, err
	}
	for i, code := range req.AccountCode {
		line := service.Line{Code: strings.TrimSpace(code)}
		if cfg.Side == ledger.Credit {
			line.Credit = req.Amount[i]
		} else {
			line.Debit = req.Amount[i]
		}
		in.Lines = append(in.Lines, line)
	}
	in.Total = req.Total
	in.Counter = counterLine(cfg, in.CashAccount, req.Total)
	return in, nil
}

func decodeUpdate(cfg voucher.Config, body io.Reader) (int64, service.VoucherInput, []int64, error) {
	var req voucher.Update
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return 0, service.VoucherInput{}, nil, badRequest("Invalid request body")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(req.ID), 10, 64)
	if err != nil {
		return 0, service.VoucherInput{}, nil, badRequest("Invalid voucher id")
	}
	in, err := headerInput(cfg, req.PayloadHeader)
	if err != nil {
		return 0, service.VoucherInput{}, nil, err
	}
	for _, d := range req.Details {
		line := service.Line{
			Code:        strings.TrimSpace(d.Code),
			Description: strings.TrimSpace(d.Description),
			Debit:       d.Debit,
			Credit:      d.Credit,
		}
		if d.ID != "" {
			if line.ID, err = strconv.ParseInt(d.ID, 10, 64); err != nil {
				return 0, service.VoucherInput{}, nil, badRequest("Invalid detail id " + strconv.Quote(d.ID))
			}
		}
		in.Lines = append(in.Lines, line)
	}
	removed := make([]int64, 0, len(req.RemovedDetails))
	for _, raw := range req.RemovedDetails {
		rid, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return 0, service.VoucherInput{}, nil, badRequest("Invalid removed detail id " + strconv.Quote(raw))
		}
		removed = append(removed, rid)
	}
	in.Total = req.Total
	in.Counter = counterLine(cfg, in.CashAccount, req.Total)
	return id, in, removed, nil
}

func headerInput(cfg voucher.Config, h voucher.PayloadHeader) (service.VoucherInput, error) {
	trans, err := time.Parse(voucher.DateLayout, strings.TrimSpace(h.TransDate))
	if err != nil {
		return service.VoucherInput{}, badRequest("Invalid trans_date")
	}
	gl, err := time.Parse(voucher.DateLayout, strings.TrimSpace(h.GLDate))
	if err != nil {
		return service.VoucherInput{}, badRequest("Invalid gl_date")
	}
	if strings.TrimSpace(h.Description) == "" {
		return service.VoucherInput{}, badRequest("Description is required")
	}
	if cfg.SingleSided() && strings.TrimSpace(h.CashAccount) == "" {
		return service.VoucherInput{}, badRequest("Cash account is required")
	}
	return service.VoucherInput{
		Kind:        string(cfg.Kind),
		TransDate:   trans,
		GLDate:      gl,
		Description: strings.TrimSpace(h.Description),
		PartyID:     strings.TrimSpace(h.PartyID),
		CashAccount: strings.TrimSpace(h.CashAccount),
		Project:     strings.TrimSpace(h.Project),
		DocCount:    h.DocCount,
		CreatedBy:   strings.TrimSpace(h.UserID),
	}, nil
}

// counterLine posts the header total to the cash account on the side
// opposite the one the operator edits.
func counterLine(cfg voucher.Config, cashAccount string, total decimal.Decimal) *service.Line {
	if !cfg.SingleSided() {
		return nil
	}
	line := service.Line{Code: cashAccount}
	if cfg.Side == ledger.Debit {
		line.Credit = total
	} else {
		line.Debit = total
	}
	return &line
}
