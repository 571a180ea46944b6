// Package repokey turns the many spellings of a repository location into one
// canonical (host, owner path, repository) key.
//
// Normalizer evaluates an ordered list of pattern matchers (browse URLs, plain
// scheme URLs, scp-style SSH remotes, local paths, scheme-less known hosts);
// the first matcher that accepts an input decides the key. Inputs no matcher
// accepts yield a ParseFailure instead of a panic or a partial key.
package repokey
