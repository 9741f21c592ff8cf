/*
Package markov provides an in-memory, first-order word Markov chain used to
fabricate sentence-like continuations of a prompt.

A Chain is built once from a corpus of sentences and is immutable afterwards.
Generation walks the chain from the tail of a prompt, penalizes tokens emitted
in the last few steps, and falls back to jumping elsewhere in the graph when
it reaches a dead end. A Builder owns a lazily built Chain and guarantees that
concurrent first callers share a single build.
*/
package markov
