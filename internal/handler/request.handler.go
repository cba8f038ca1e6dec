package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"ledger-service/internal/domain"
	"ledger-service/internal/storage"
	"ledger-service/shared/response"
	xerrors "ledger-service/shared/utils/errors"
)

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return fmt.Errorf("%w: invalid multipart form", xerrors.ErrInvalidInput)
	}
	return nil
}

// checkFormFile validates an upload field without storing it.
func checkFormFile(r *http.Request, field string, required bool) error {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		if required {
			return fmt.Errorf("%w: %s image required", xerrors.ErrInvalidInput, field)
		}
		return nil
	}
	if !storage.Allowed(r.MultipartForm.File[field][0].Filename) {
		return fmt.Errorf("%w: %s: unsupported file type", xerrors.ErrInvalidInput, field)
	}
	return nil
}

// saveFormFile stores the named upload for username. found is false when the field is absent.
func (h *Handler) saveFormFile(r *http.Request, field, username, prefix string) (url string, found bool, err error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %s", xerrors.ErrInvalidInput, field)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	url, err = h.uploads.Save(username, prefix, header.Filename, file)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %v", xerrors.ErrInvalidInput, field, err)
	}
	return url, true, nil
}

// SubmitDeposit accepts JSON or a multipart form with an optional "proof" file.
// POST /api/v1/deposits
func (h *Handler) SubmitDeposit(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	in := domain.DepositInput{Username: username}

	if isMultipart(r) {
		if err := h.parseMultipart(w, r); err != nil {
			h.fail(w, r, "submit deposit", err)
			return
		}
		in.Currency = r.FormValue("currency")
		in.Network = r.FormValue("network")
		in.Amount = r.FormValue("amount")

		// nothing reaches disk until the request itself is valid
		if err := h.requests.ValidateDeposit(r.Context(), in); err != nil {
			h.fail(w, r, "submit deposit", err)
			return
		}
		if err := checkFormFile(r, "proof", false); err != nil {
			h.fail(w, r, "submit deposit", err)
			return
		}
		url, found, err := h.saveFormFile(r, "proof", username, "deposit")
		if err != nil {
			h.fail(w, r, "submit deposit", err)
			return
		}
		if found {
			in.ProofURL = &url
		}
	} else {
		var body struct {
			Currency string     `json:"currency"`
			Network  string     `json:"network"`
			Amount   flexString `json:"amount"`
			ProofURL *string    `json:"proof_url"`
		}
		if err := decodeJSON(r, &body); err != nil {
			h.fail(w, r, "submit deposit", err)
			return
		}
		in.Currency = body.Currency
		in.Network = body.Network
		in.Amount = string(body.Amount)
		in.ProofURL = body.ProofURL
	}

	sub, err := h.requests.SubmitDeposit(r.Context(), in)
	if err != nil {
		h.fail(w, r, "submit deposit", err)
		return
	}
	response.JSON(w, http.StatusCreated, sub)
}

// POST /api/v1/withdrawals
func (h *Handler) SubmitWithdrawal(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	var body struct {
		Currency string     `json:"currency"`
		Network  string     `json:"network"`
		Amount   flexString `json:"amount"`
		Address  string     `json:"address"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, "submit withdrawal", err)
		return
	}

	sub, err := h.requests.SubmitWithdrawal(r.Context(), domain.WithdrawalInput{
		Username: username,
		Currency: body.Currency,
		Network:  body.Network,
		Amount:   string(body.Amount),
		Address:  body.Address,
	})
	if err != nil {
		h.fail(w, r, "submit withdrawal", err)
		return
	}
	response.JSON(w, http.StatusCreated, sub)
}

// POST /api/v1/verifications/primary
func (h *Handler) SubmitPrimaryVerification(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	var body struct {
		FullName       string `json:"full_name"`
		DocumentType   string `json:"document_type"`
		DocumentNumber string `json:"document_number"`
	}
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, "submit primary verification", err)
		return
	}

	sub, err := h.requests.SubmitPrimaryVerification(r.Context(), domain.PrimaryVerificationInput{
		Username:       username,
		FullName:       body.FullName,
		DocumentType:   body.DocumentType,
		DocumentNumber: body.DocumentNumber,
	})
	if err != nil {
		h.fail(w, r, "submit primary verification", err)
		return
	}
	response.JSON(w, http.StatusCreated, sub)
}

// SubmitAdvancedVerification expects "front", "back" and "selfie" image files.
// POST /api/v1/verifications/advanced
func (h *Handler) SubmitAdvancedVerification(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !isMultipart(r) {
		h.fail(w, r, "submit advanced verification",
			fmt.Errorf("%w: multipart form required", xerrors.ErrInvalidInput))
		return
	}
	if err := h.parseMultipart(w, r); err != nil {
		h.fail(w, r, "submit advanced verification", err)
		return
	}
	if _, err := h.accounts.Get(r.Context(), username); err != nil {
		h.fail(w, r, "submit advanced verification", err)
		return
	}

	urls := make(map[string]string, 3)
	for _, field := range []string{"front", "back", "selfie"} {
		if err := checkFormFile(r, field, true); err != nil {
			h.fail(w, r, "submit advanced verification", err)
			return
		}
	}
	for _, field := range []string{"front", "back", "selfie"} {
		url, _, err := h.saveFormFile(r, field, username, "kyc_"+field)
		if err != nil {
			h.fail(w, r, "submit advanced verification", err)
			return
		}
		urls[field] = url
	}

	sub, err := h.requests.SubmitAdvancedVerification(r.Context(), domain.AdvancedVerificationInput{
		Username:  username,
		FrontURL:  urls["front"],
		BackURL:   urls["back"],
		SelfieURL: urls["selfie"],
	})
	if err != nil {
		h.fail(w, r, "submit advanced verification", err)
		return
	}
	response.JSON(w, http.StatusCreated, sub)
}

// GET /api/v1/verifications/status
func (h *Handler) VerificationStatus(w http.ResponseWriter, r *http.Request) {
	username, ok := currentUser(w, r)
	if !ok {
		return
	}
	st, err := h.requests.VerificationStatus(r.Context(), username)
	if err != nil {
		h.fail(w, r, "verification status", err)
		return
	}
	response.JSON(w, http.StatusOK, st)
}
