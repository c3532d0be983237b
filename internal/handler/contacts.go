package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/hashezusa/aleo-GUI-wallet/internal/model"
)

// contacts dispatches /accounts/{id}/contacts and its sub-paths. rest is the
// path remainder after "contacts" ("", "/export", "/import", or
// "/{address}").
func (h *WalletHandler) contacts(w http.ResponseWriter, r *http.Request, id, rest string) {
	rest = strings.TrimPrefix(rest, "/")
	switch {
	case rest == "":
		h.contactCollection(w, r, id)
	case rest == "export":
		h.exportContacts(w, r, id)
	case rest == "import":
		h.importContacts(w, r, id)
	default:
		h.contactByAddress(w, r, id, rest)
	}
}

// contactCollection handles GET (list/search) and POST (add) on
// /accounts/{id}/contacts.
// @Summary      List or add contacts
// @Description  GET lists contacts, filtered case-insensitively by the q parameter; POST adds one
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Param        q        query     string               false  "Search query over names and addresses"
// @Param        request  body      model.ContactRequest false  "Contact to add"
// @Success      200      {array}   model.Contact
// @Router       /accounts/{id}/contacts [get]
func (h *WalletHandler) contactCollection(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		contacts, err := h.ledger.SearchContacts(id, r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, contacts)
	case http.MethodPost:
		var req model.ContactRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, model.ErrInvalidFormat)
			return
		}
		err := h.ledger.AddContact(id, model.Contact{
			Name:        req.Name,
			Address:     req.Address,
			Description: req.Description,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]bool{"added": true})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// contactByAddress handles POST (edit) and DELETE on
// /accounts/{id}/contacts/{address}.
func (h *WalletHandler) contactByAddress(w http.ResponseWriter, r *http.Request, id, address string) {
	switch r.Method {
	case http.MethodPost:
		var req model.ContactRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, model.ErrInvalidFormat)
			return
		}
		var name, desc *string
		if req.Name != "" {
			name = &req.Name
		}
		if req.Description != "" {
			desc = &req.Description
		}
		if err := h.ledger.UpdateContact(id, address, name, desc); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
	case http.MethodDelete:
		if err := h.ledger.RemoveContact(id, address); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// exportContacts handles GET /accounts/{id}/contacts/export.
func (h *WalletHandler) exportContacts(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}
	out, err := h.ledger.ExportContacts(id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}

// importContacts handles POST /accounts/{id}/contacts/import. The body is a
// JSON contact array; invalid and duplicate entries are skipped.
func (h *WalletHandler) importContacts(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, model.ErrInvalidFormat)
		return
	}
	added, err := h.ledger.ImportContacts(id, string(body))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": added})
}
