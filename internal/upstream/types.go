package upstream

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserInfo is the platform's view of a player. The gateway treats it as an
// eventually consistent snapshot: the last-known value keeps being served
// when a refresh fails for non-auth reasons.
type UserInfo struct {
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
	VIPLevel int             `json:"vip_level"`
	Avatar   string          `json:"avatar,omitempty"`
}

// GameRecord is one entry of the platform's flat game list.
type GameRecord struct {
	PlatformCode string `json:"platform_code"`
	VendorCode   string `json:"vendor_code"`
	Category     string `json:"game_type"`
	GameCode     string `json:"game_code"`
	Name         string `json:"name"`
	CoverImage   string `json:"img_url"`
}

// LaunchRequest carries the parameters the platform needs to mint a game
// launch URL. Platform code is the only hard requirement; vendors differ on
// the rest.
type LaunchRequest struct {
	PlatformCode string `json:"platform_code"`
	VendorCode   string `json:"vendor_code,omitempty"`
	GameType     string `json:"game_type,omitempty"`
	GameCode     string `json:"game_code,omitempty"`
	Lang         string `json:"lang,omitempty"`
}

type Notice struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type VIPInfo struct {
	Level         int             `json:"level"`
	NextLevel     int             `json:"next_level"`
	TotalDeposit  decimal.Decimal `json:"total_deposit"`
	TotalBet      decimal.Decimal `json:"total_bet"`
	DepositTarget decimal.Decimal `json:"deposit_target"`
	BetTarget     decimal.Decimal `json:"bet_target"`
}

type MoneyLogEntry struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	Remark    string          `json:"remark"`
	CreatedAt time.Time       `json:"created_at"`
}

type Message struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginResult struct {
	Token string    `json:"token"`
	User  *UserInfo `json:"user,omitempty"`
}

type TransferResult struct {
	RefID   string          `json:"ref_id"`
	Balance decimal.Decimal `json:"balance"`
}
