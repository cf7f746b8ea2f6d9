package checkout

import "errors"

var (
	ErrGatewayUnavailable  = errors.New("payment gateway is not available, please try again later")
	ErrInvalidAmount       = errors.New("checkout amount must be a positive number")
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrTotalMismatch       = errors.New("checkout amount does not match the cart total")
	ErrPaymentNotCompleted = errors.New("payment was not completed")
	ErrPaymentNotVerified  = errors.New("payment could not be verified")
	ErrStatusLogFailed     = errors.New("could not record the order status, your cart was kept, please retry")
	ErrOrderNotStored      = errors.New("could not save the order, your cart was kept, please retry")
	ErrAttemptNotFound     = errors.New("checkout attempt not found")
	ErrAttemptResolved     = errors.New("checkout attempt already completed")
	ErrAttemptCanceled     = errors.New("checkout attempt was canceled")
	ErrPaymentInProgress   = errors.New("a paid checkout is still being completed, retry it first")
)
