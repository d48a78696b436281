package script

import (
	"fmt"
)

// ServerScript is the program the preview worker runs at startup. It listens
// on the loopback port, serves one connection at a time and answers each
// length-prefixed script with a length-prefixed result: "OK" or the error text.
func ServerScript(port int) string {
	return fmt.Sprintf(serverTemplate, port, port)
}

const serverTemplate = `import bpy
import socket
import struct
import sys

sys.stdout.reconfigure(line_buffering=True)


def recv_exact(conn, size):
    data = b''
    while len(data) < size:
        packet = conn.recv(min(65536, size - len(data)))
        if not packet:
            return None
        data += packet
    return data


try:
    server = socket.socket(socket.AF_INET, socket.SOCK_STREAM)
    server.setsockopt(socket.SOL_SOCKET, socket.SO_REUSEADDR, 1)
    server.bind(('127.0.0.1', %d))
    server.listen(1)
    print('Preview worker listening on %d')

    while True:
        client = None
        try:
            client, addr = server.accept()
            header = recv_exact(client, 4)
            if header is None:
                continue
            size = struct.unpack('<I', header)[0]
            data = recv_exact(client, size)
            if data is None:
                continue

            response = 'OK'
            try:
                exec(data.decode('utf-8'), {'__name__': '__preview__'})
            except Exception as e:
                response = str(e)
                print(f'Script Error: {e}')

            resp_data = response.encode('utf-8')
            client.sendall(struct.pack('<I', len(resp_data)) + resp_data)
        except Exception as e:
            print(f'Server Loop Error: {e}')
        finally:
            if client:
                try:
                    client.close()
                except Exception:
                    pass
except Exception as main_e:
    print(f'Critical Server Error: {main_e}')
`
