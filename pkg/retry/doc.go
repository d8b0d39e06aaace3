// Package retry provides exponential backoff for transient failures.
//
// The schedule comes in two shapes. Do runs a function a bounded number
// of times with growing delays between attempts:
//
//	err := retry.Do(ctx, retry.Persistent(), func() error {
//	    return client.Connect()
//	})
//
// Backoff hands out the same delays one at a time, for callers that own
// their loop, such as a transport redial:
//
//	backoff := retry.NewBackoff(retry.Config{
//	    InitialDelay: 5 * time.Second,
//	    MaxDelay:     time.Minute,
//	})
//	for {
//	    select {
//	    case <-shutdown.Done():
//	        return
//	    case <-time.After(backoff.Next()):
//	    }
//	    if err := redial(); err == nil {
//	        backoff.Reset()
//	    }
//	}
//
// DefaultConfig, Quick and Persistent cover the common schedules; zero
// fields in a Config fall back to usable values. Errors that retrying
// cannot fix, such as a rejected certificate or a malformed payload,
// are wrapped with NonRetryable so Do returns them at once.
//
// Do stops as soon as the context is cancelled, whether between
// attempts or during a backoff wait. Do is safe for concurrent use; a
// Backoff is not, each loop owns its own.
package retry
