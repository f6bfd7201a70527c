/*
Package storage opens container locations as gocloud.dev blob buckets so that chunked
datasets can be read and written the same way on local disk, in memory, and on cloud
object stores.
*/
package storage
