package port

import "context"

// CodeDeliverer hands a plaintext one-time code to the operator's registered
// out-of-band channel. The core does not assume the channel is email; it only
// requires that delivery either completes or fails before returning.
type CodeDeliverer interface {
	Deliver(ctx context.Context, code string) error
}
