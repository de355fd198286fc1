package domain

// Security represents a tradable instrument.
// Created on first reference during ingestion (get-or-create by ticker);
// identity fields are never edited once a transaction references it.
type Security struct {
	ID        int64
	Ticker    string // Unique ticker code (e.g., "BHP.AX")
	Name      string // Optional descriptive name
	Exchange  Exchange
	Currency  string // Settlement currency (e.g., "AUD", "USD")
	AssetType AssetType
}
