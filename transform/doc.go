// Package transform is the Function-Level Transform Suite: ten
// obfuscating rewrites, each taking one function and an effective
// configuration, each leaving the function verifier-clean.
package transform
