package models

import "time"

// DepositAccount - реквизиты, на которые пользователи переводят оплату депозита.
// Список ведёт администратор.
type DepositAccount struct {
	ID            string    `json:"id"`
	Account       string    `json:"account"`
	AccountNumber string    `json:"account_number"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DummyDepositAccount используется для приёма реквизитов из запроса.
type DummyDepositAccount struct {
	Account       string `json:"account" validate:"required,max=64"`
	AccountNumber string `json:"account_number" validate:"required,max=64"`
}
