// Package httpclient performs the simulator's optional outbound GET.
//
// [RequestClient.Get] separates two kinds of failure:
//   - no response at all (DNS, refused connection, TLS, timeout): a
//     [*TransportError] is returned with a [TransportKind]
//   - a response with a non-2xx status: a normal [Outcome] whose Success
//     method reports false; [Outcome.Err] converts it to an [*HTTPError]
//
// Callers tell the two apart like this:
//
//	client := httpclient.New(httpclient.NewClient(0), httpclient.WithLogger(logger))
//	outcome, err := client.Get(ctx, "https://www.rust-lang.org")
//	var terr *httpclient.TransportError
//	switch {
//	case errors.As(err, &terr):
//		// network-level failure
//	case !outcome.Success():
//		// application-level failure
//	}
package httpclient
