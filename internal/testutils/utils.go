package testutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net"
	"os"
	"sync"
	"time"
)

func WithTimeout(timeout time.Duration, f func()) {
	t := time.After(timeout)
	done := make(chan struct{})
	go func() {
		select {
		case <-t:
			panic("timeout expired")
		case <-done:
		}
	}()
	f()
	done <- struct{}{}
}

func WaitUntil(timeout time.Duration, f func() bool) {
	t := time.After(timeout)
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		for {
			select {
			case <-t:
				panic("timeout expired")
			default:
				if f() {
					wg.Done()
					return
				}
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()
	wg.Wait()
}

func UseTempFile(data string, f func(path string)) {
	file, err := os.CreateTemp("", "*.txt")
	if err != nil {
		panic(fmt.Errorf("couldn't create temp file: %s", err))
	}
	_, err = file.WriteString(data)
	if err != nil {
		panic(fmt.Errorf("couldn't write to temp file: %s", err))
	}
	_ = file.Close()
	filePath := file.Name()
	defer func() {
		err := os.Remove(filePath)
		if err != nil {
			log.Printf("couldn't delete temp file %s: %s", filePath, err)
		}
	}()
	f(filePath)
}

func WriteIntoFile(path string, data string) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err = f.WriteString(data); err != nil {
		panic(err)
	}
	if err = f.Sync(); err != nil {
		panic(err)
	}
}

func ReadFile(path string) string {
	d, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	return string(d)
}

// GenerateCertificate produces a self-signed PEM certificate and PKCS#8 key
// valid for the given DNS names and the loopback addresses.
func GenerateCertificate(hosts ...string) (string, string) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		panic(err)
	}
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "localhost"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              append([]string{"localhost"}, hosts...),
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		panic(err)
	}
	pk, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		panic(err)
	}
	cert := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	k := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pk})
	return string(cert), string(k)
}

// UseCertificate writes a generated certificate and key into temp files.
func UseCertificate(f func(cert string, key string), hosts ...string) {
	c, k := GenerateCertificate(hosts...)
	UseTempFile(c, func(cert string) {
		UseTempFile(k, func(key string) {
			f(cert, key)
		})
	})
}
