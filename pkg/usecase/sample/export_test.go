package sample

var FetchWith = fetch
