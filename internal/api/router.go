package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/hashezusa/aleo-GUI-wallet/internal/handler"
)

// SetupRouter sets up router with handlers
func SetupRouter(h *handler.WalletHandler) http.Handler {
	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Account endpoints
	mux.HandleFunc("/accounts", h.Accounts)
	mux.HandleFunc("/accounts/import", h.ImportAccount)
	mux.HandleFunc("/accounts/", h.AccountByID)

	// Security endpoints
	mux.HandleFunc("/security/unlock", h.Unlock)
	mux.HandleFunc("/security/lock", h.LockWallet)
	mux.HandleFunc("/security/status", h.SecurityStatus)
	mux.HandleFunc("/security/password", h.ChangePassword)
	mux.HandleFunc("/security/enable", h.EnableProtection)
	mux.HandleFunc("/security/disable", h.DisableProtection)

	// Network and market endpoints
	mux.HandleFunc("/network/status", h.NetworkStatus)
	mux.HandleFunc("/price", h.Price)

	// Wallet file endpoints
	mux.HandleFunc("/wallet/backup", h.Backup)
	mux.HandleFunc("/wallet/restore", h.Restore)

	return mux
}
