package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SandboxKeyID is the public key reported by the sandbox gateway.
const SandboxKeyID = "rzp_sandbox"

// Sandbox accepts every order locally. Completion responses must still be
// signed with Secret, so the callback path is exercised end to end.
type Sandbox struct {
	Secret string
}

func (s Sandbox) Open(_ context.Context, req Request) (Handle, error) {
	if req.AmountMinor <= 0 {
		return Handle{}, fmt.Errorf("sandbox: amount must be positive")
	}
	return Handle{
		GatewayOrderID: "order_" + uuid.NewString(),
		KeyID:          SandboxKeyID,
	}, nil
}

func (s Sandbox) Verify(h Handle, resp Response) error {
	return verifySignature(s.Secret, h, resp)
}

// Complete builds the response the sandbox widget would return for h.
func (s Sandbox) Complete(h Handle) Response {
	paymentID := fmt.Sprintf("pay_%d", time.Now().UnixNano())
	return Response{
		PaymentID:      paymentID,
		GatewayOrderID: h.GatewayOrderID,
		Signature:      Sign(s.Secret, h.GatewayOrderID, paymentID),
	}
}
