// Package ratelimit paces requests to the marketplace API.
//
// FixedDelay inserts a constant pause before every request but the first,
// which keeps a sequential page loop at a predictable rate. SlidingWindow
// caps the number of requests in a moving time window. Both honor context
// cancellation, and Chain combines them:
//
//	limiter := ratelimit.New(time.Second, 120)
//	for {
//	    if err := limiter.Wait(ctx); err != nil {
//	        return err
//	    }
//	    // send request
//	}
package ratelimit
