// Package extract turns a page capture into listing candidates by asking a
// vision model to read it.
//
// The natural-language rule embedded in the prompt is the only filter: the
// service returns whatever the model judged to match and never applies a
// second semantic pass of its own. Its responsibilities are the request
// shape, strict decoding of the answer, and the primary/fallback model policy.
package extract
